package exo

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tdeslauriers/portability/internal/util"
)

// Exoskeleton is the operator cli for the portability service.
// It's purpose is to receive a config struct and execute the commands defined therein.
type Exoskeleton interface {

	// Execute runs every command set in the config, writing results to out.
	Execute(out io.Writer) error
}

// New is a factory function that returns a new Exo cli interface.
func New(config Config) Exoskeleton {
	return &exoskeleton{
		config: config,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentExo)).
			With(slog.String(util.PackageKey, util.PackageExo)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Exoskeleton = (*exoskeleton)(nil)

// exoskeleton is the concrete implementation of the Exo interface.
type exoskeleton struct {
	config Config

	logger *slog.Logger
}

// Parse reads flags from args, eg, os.Args[1:], and returns the exo config.
func Parse(args []string) (*Config, error) {

	fs := flag.NewFlagSet("exo", flag.ContinueOnError)

	// secrets generation
	secretsMsg := "creates the 32 byte field level aes-gcm secret and prints it as an env var"
	secrets := fs.Bool("secrets", false, secretsMsg)
	fs.BoolVar(secrets, "sec", false, secretsMsg)

	// oauth scopes
	scopesMsg := "prints the oauth scope string for the requested resources"
	scopes := fs.Bool("scopes", false, scopesMsg)
	fs.BoolVar(scopes, "sc", false, scopesMsg)

	resourcesMsg := "comma separated resources, eg, 'myactivity.search,myactivity.youtube'"
	resources := fs.String("resources", "", resourcesMsg)
	fs.StringVar(resources, "r", "", resourcesMsg)

	// service name
	svcNameMsg := "applies service name to applicable fields in exo commands"
	svcName := fs.String("service", util.ServicePortability, svcNameMsg)
	fs.StringVar(svcName, "s", util.ServicePortability, svcNameMsg)

	// file
	fileMsg := "imports a provider yaml file whose resources are used if -r is not set"
	file := fs.String("file", "", fileMsg)
	fs.StringVar(file, "f", "", fileMsg)

	// help message
	fs.Usage = func() {

		out := fs.Output()
		fmt.Fprintf(out, "Usage: exo [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fmt.Fprintf(out, "  -sec, --secrets     %s\n", secretsMsg)
		fmt.Fprintf(out, "  -sc,  --scopes      %s\n", scopesMsg)
		fmt.Fprintf(out, "  -r,   --resources   %s\n", resourcesMsg)
		fmt.Fprintf(out, "  -s,   --service     %s\n", svcNameMsg)
		fmt.Fprintf(out, "  -f,   --file        %s\n", fileMsg)
		fmt.Fprintf(out, "  -h                  Display this help message\n")
	}

	// parse flags
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var list []string
	for _, r := range strings.Split(*resources, ",") {
		if r = strings.TrimSpace(r); r != "" {
			list = append(list, r)
		}
	}

	return &Config{
		ServiceName: *svcName,
		Secret:      *secrets,
		Scopes:      *scopes,
		Resources:   list,
		File:        *file,
	}, nil
}

// Execute is the method that will execute the commands defined in the config struct
func (cli *exoskeleton) Execute(out io.Writer) error {

	if !cli.config.Secret && !cli.config.Scopes {
		return fmt.Errorf("no exo command given, see -h")
	}

	// secret generation execution
	if cli.config.Secret {
		if err := cli.secretGenExecution(out); err != nil {
			return fmt.Errorf("error executing secret command: %v", err)
		}
	}

	// scope printing execution
	if cli.config.Scopes {
		if err := cli.scopesExecution(out); err != nil {
			return fmt.Errorf("error executing scopes command: %v", err)
		}
	}

	return nil
}

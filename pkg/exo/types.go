package exo

// Config is the configuration for the exo cli command.
// It contains the values parsed from the command line flags.
type Config struct {
	ServiceName string
	Secret      bool // generate the field level aes-gcm secret
	Scopes      bool // print the oauth scopes for the requested resources
	Resources   []string
	File        string // provider yaml file, read for its resource list
}

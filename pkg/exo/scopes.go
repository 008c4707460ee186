package exo

import (
	"fmt"
	"io"

	"github.com/tdeslauriers/portability/pkg/config"
	"github.com/tdeslauriers/portability/pkg/provider"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// scopesExecution prints the scope string the consent url will request, so it can be
// registered on the oauth client ahead of deployment.
func (e *exoskeleton) scopesExecution(out io.Writer) error {

	resources := e.config.Resources
	if len(resources) == 0 && e.config.File != "" {
		p := config.DefaultProvider()
		if err := p.ApplyFile(e.config.File); err != nil {
			return err
		}
		resources = p.Resources
	}

	if len(resources) == 0 {
		return fmt.Errorf("resources are required, use -r or a provider file with -f")
	}

	for _, r := range resources {
		if err := validate.IsValidResource(r); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(out, provider.Scopes(resources))
	return err
}

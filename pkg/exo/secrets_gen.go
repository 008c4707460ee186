package exo

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/tdeslauriers/portability/pkg/data"
)

// secretGenExecution prints a fresh field level encryption key as the env var the service reads.
func (e *exoskeleton) secretGenExecution(out io.Writer) error {

	// check for required cli args
	if e.config.ServiceName == "" {
		return fmt.Errorf("service name is required to generate secrets")
	}

	secret := base64.StdEncoding.EncodeToString(data.GenerateAesGcmKey())

	// round trip so a bad key is never handed out
	if _, err := data.NewServiceAesGcmKey(secret); err != nil {
		return fmt.Errorf("generated secret is unusable: %v", err)
	}

	envVar := fmt.Sprintf("%s_FIELD_LEVEL_AES_GCM_SECRET", strings.ToUpper(e.config.ServiceName))
	if _, err := fmt.Fprintf(out, "%s=%s\n", envVar, secret); err != nil {
		return err
	}

	e.logger.Info(fmt.Sprintf("generated %s", envVar))

	return nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tdeslauriers/portability/pkg/validate"
	"gopkg.in/yaml.v3"
)

// providerFile is the optional yaml override for provider endpoints and resources.
type providerFile struct {
	AuthUrl         string   `yaml:"auth_url"`
	TokenUrl        string   `yaml:"token_url"`
	ArchiveUrl      string   `yaml:"archive_url"`
	Resources       []string `yaml:"resources"`
	PollInterval    string   `yaml:"poll_interval"`
	MaxPollAttempts int      `yaml:"max_poll_attempts"`
	PendingTtl      string   `yaml:"pending_ttl"`
}

// ApplyFile overlays any values set in the yaml file at path onto p.
func (p *Provider) ApplyFile(path string) error {

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read provider file %s: %v", ErrConfiguration, path, err)
	}

	var file providerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("%w: failed to parse provider file %s: %v", ErrConfiguration, path, err)
	}

	if file.AuthUrl != "" {
		p.AuthUrl = file.AuthUrl
	}
	if file.TokenUrl != "" {
		p.TokenUrl = file.TokenUrl
	}
	if file.ArchiveUrl != "" {
		p.ArchiveUrl = file.ArchiveUrl
	}
	if len(file.Resources) > 0 {
		p.Resources = file.Resources
	}
	if file.PollInterval != "" {
		d, err := time.ParseDuration(file.PollInterval)
		if err != nil {
			return fmt.Errorf("%w: invalid poll_interval in %s: %v", ErrConfiguration, path, err)
		}
		p.PollInterval = d
	}
	if file.MaxPollAttempts != 0 {
		p.MaxPollAttempts = file.MaxPollAttempts
	}
	if file.PendingTtl != "" {
		d, err := time.ParseDuration(file.PendingTtl)
		if err != nil {
			return fmt.Errorf("%w: invalid pending_ttl in %s: %v", ErrConfiguration, path, err)
		}
		p.PendingTtl = d
	}

	return nil
}

// Validate checks that everything needed to build provider requests is present.
func (p *Provider) Validate() error {

	if strings.TrimSpace(p.ClientId) == "" {
		return fmt.Errorf("%w: oauth client id not set", ErrConfiguration)
	}

	if strings.TrimSpace(p.ClientSecret) == "" {
		return fmt.Errorf("%w: oauth client secret not set", ErrConfiguration)
	}

	for name, raw := range map[string]string{
		"redirect url": p.RedirectUrl,
		"auth url":     p.AuthUrl,
		"token url":    p.TokenUrl,
		"archive url":  p.ArchiveUrl,
	} {
		if raw == "" {
			return fmt.Errorf("%w: %s not set", ErrConfiguration, name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s is not an absolute url: %q", ErrConfiguration, name, raw)
		}
	}

	if !strings.HasSuffix(p.ArchiveUrl, "/") {
		return fmt.Errorf("%w: archive url must end with '/': %q", ErrConfiguration, p.ArchiveUrl)
	}

	if len(p.Resources) == 0 {
		return fmt.Errorf("%w: no resources requested", ErrConfiguration)
	}

	// a resource the scope extractor would not recognize is granted but never archived
	for _, r := range p.Resources {
		if err := validate.IsValidResource(r); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	if p.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrConfiguration)
	}

	if p.MaxPollAttempts < 0 {
		return fmt.Errorf("%w: max poll attempts cannot be negative", ErrConfiguration)
	}

	return nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load reads the service configuration from environment variables prefixed
// with the upper-cased service name, eg, PORTABILITY_SERVICE_PORT.
func Load(def SvcDefinition) (*Config, error) {

	if def.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name must be provided to definitions, cannot be empty", ErrConfiguration)
	}

	config := &Config{
		ServiceName: def.ServiceName,
		Tls:         def.Tls,
		LogLevel:    slog.LevelInfo,
	}

	if config.Tls == "" {
		config.Tls = NoTls
	}

	prefix := fmt.Sprintf("%s_", strings.ToUpper(def.ServiceName))

	// read in service port
	envPort, err := required(prefix, "SERVICE_PORT")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(envPort, ":") {
		envPort = ":" + envPort
	}
	config.ServicePort = envPort

	// log level is optional: info by default
	if envLevel, ok := os.LookupEnv(prefix + "LOG_LEVEL"); ok && envLevel != "" {
		if err := config.LogLevel.UnmarshalText([]byte(envLevel)); err != nil {
			return nil, fmt.Errorf("%w: %sLOG_LEVEL invalid: %v", ErrConfiguration, prefix, err)
		}
	}

	if err := config.readCerts(def, prefix); err != nil {
		return nil, err
	}

	if def.Requires.Db {
		if err := config.databaseEnvVars(def, prefix); err != nil {
			return nil, err
		}
	}

	if def.Requires.ObjectStorage {
		if err := config.objectStorageEnvVars(prefix); err != nil {
			return nil, err
		}
	}

	if def.Requires.Provider {
		if err := config.providerEnvVars(prefix); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// required looks up a mandatory env var, erroring if it is missing or empty.
func required(prefix, name string) (string, error) {
	v, ok := os.LookupEnv(prefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s%s not set", ErrConfiguration, prefix, name)
	}
	return v, nil
}

func (config *Config) readCerts(def SvcDefinition, prefix string) error {

	// server cert and key only needed if the front door terminates tls
	if def.Tls != NoTls && def.Tls != "" {

		envServerCert, err := required(prefix, "SERVER_CERT")
		if err != nil {
			return err
		}
		config.Certs.ServerCert = &envServerCert

		envServerKey, err := required(prefix, "SERVER_KEY")
		if err != nil {
			return err
		}
		config.Certs.ServerKey = &envServerKey
	}

	// ca cert for client verification
	if def.Tls == MutualTls {
		envCaCert, err := required(prefix, "CA_CERT")
		if err != nil {
			return err
		}
		config.Certs.ServerCa = &envCaCert
	}

	// db client certs
	if def.Requires.DbTls {

		envDbClientCert, err := required(prefix, "DB_CLIENT_CERT")
		if err != nil {
			return err
		}
		config.Certs.DbClientCert = &envDbClientCert

		envDbClientKey, err := required(prefix, "DB_CLIENT_KEY")
		if err != nil {
			return err
		}
		config.Certs.DbClientKey = &envDbClientKey

		envDbCaCert, err := required(prefix, "DB_CA_CERT")
		if err != nil {
			return err
		}
		config.Certs.DbCaCert = &envDbCaCert
	}

	return nil
}

func (config *Config) databaseEnvVars(def SvcDefinition, prefix string) error {

	var err error

	if config.Database.Url, err = required(prefix, "DATABASE_URL"); err != nil {
		return err
	}

	if config.Database.Name, err = required(prefix, "DATABASE_NAME"); err != nil {
		return err
	}

	if config.Database.Username, err = required(prefix, "DATABASE_USERNAME"); err != nil {
		return err
	}

	if config.Database.Password, err = required(prefix, "DATABASE_PASSWORD"); err != nil {
		return err
	}

	// field level encryption key
	if def.Requires.AesSecret {
		if config.Database.FieldSecret, err = required(prefix, "FIELD_LEVEL_AES_GCM_SECRET"); err != nil {
			return err
		}
	}

	return nil
}

func (config *Config) objectStorageEnvVars(prefix string) error {

	var err error

	if config.ObjectStorage.Url, err = required(prefix, "OBJECT_STORAGE_URL"); err != nil {
		return err
	}

	if config.ObjectStorage.Bucket, err = required(prefix, "OBJECT_STORAGE_BUCKET"); err != nil {
		return err
	}

	if config.ObjectStorage.AccessKey, err = required(prefix, "OBJECT_STORAGE_ACCESS_KEY"); err != nil {
		return err
	}

	if config.ObjectStorage.SecretKey, err = required(prefix, "OBJECT_STORAGE_SECRET_KEY"); err != nil {
		return err
	}

	if envSecure, ok := os.LookupEnv(prefix + "OBJECT_STORAGE_SECURE"); ok && envSecure != "" {
		secure, err := strconv.ParseBool(envSecure)
		if err != nil {
			return fmt.Errorf("%w: %sOBJECT_STORAGE_SECURE invalid: %v", ErrConfiguration, prefix, err)
		}
		config.ObjectStorage.Secure = secure
	}

	return nil
}

// providerEnvVars resolves provider settings: defaults, then the optional
// provider file, then individual env vars, then validation.
func (config *Config) providerEnvVars(prefix string) error {

	p := DefaultProvider()

	if path, ok := os.LookupEnv(prefix + "PROVIDER_FILE"); ok && path != "" {
		if err := p.ApplyFile(path); err != nil {
			return err
		}
	}

	var err error
	if p.ClientId, err = required(prefix, "OAUTH_CLIENT_ID"); err != nil {
		return err
	}

	if p.ClientSecret, err = required(prefix, "OAUTH_CLIENT_SECRET"); err != nil {
		return err
	}

	if p.RedirectUrl, err = required(prefix, "OAUTH_REDIRECT_URL"); err != nil {
		return err
	}

	if v, ok := os.LookupEnv(prefix + "PROVIDER_AUTH_URL"); ok && v != "" {
		p.AuthUrl = v
	}

	if v, ok := os.LookupEnv(prefix + "PROVIDER_TOKEN_URL"); ok && v != "" {
		p.TokenUrl = v
	}

	if v, ok := os.LookupEnv(prefix + "PROVIDER_ARCHIVE_URL"); ok && v != "" {
		p.ArchiveUrl = v
	}

	if v, ok := os.LookupEnv(prefix + "REQUESTED_RESOURCES"); ok && v != "" {
		p.Resources = splitList(v)
	}

	if v, ok := os.LookupEnv(prefix + "POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sPOLL_INTERVAL invalid: %v", ErrConfiguration, prefix, err)
		}
		p.PollInterval = d
	}

	if v, ok := os.LookupEnv(prefix + "POLL_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sPOLL_MAX_ATTEMPTS invalid: %v", ErrConfiguration, prefix, err)
		}
		p.MaxPollAttempts = n
	}

	if v, ok := os.LookupEnv(prefix + "PENDING_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sPENDING_TTL invalid: %v", ErrConfiguration, prefix, err)
		}
		p.PendingTtl = d
	}

	if err := p.Validate(); err != nil {
		return err
	}

	config.Provider = p

	return nil
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package config

import (
	"errors"
	"log/slog"
	"time"
)

// ErrConfiguration marks any missing or malformed startup setting.
var ErrConfiguration = errors.New("configuration error")

const (
	DefaultAuthUrl    string = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenUrl   string = "https://oauth2.googleapis.com/token"
	DefaultArchiveUrl string = "https://dataportability.googleapis.com/v1beta/"

	DefaultPollInterval    time.Duration = 10 * time.Second
	DefaultMaxPollAttempts int           = 2160 // six hours at the default interval
	DefaultPendingTtl      time.Duration = time.Hour
)

type Config struct {
	ServiceName   string
	ServicePort   string // must have :8443 format with leading colon
	Tls           ServerTls
	LogLevel      slog.Level
	Certs         Certs
	Database      Database
	ObjectStorage ObjectStorage
	Provider      Provider
}

type Certs struct {
	ServerCert *string
	ServerKey  *string
	ServerCa   *string

	DbClientCert *string
	DbClientKey  *string
	DbCaCert     *string
}

type Database struct {
	Url         string
	Name        string
	Username    string
	Password    string
	FieldSecret string
}

type ObjectStorage struct {
	Url       string
	Bucket    string // one bucket per service, like one db per service
	AccessKey string // username, effectively
	SecretKey string // password, effectively
	Secure    bool
}

// Provider holds the oauth client registration and the data portability endpoints.
type Provider struct {
	ClientId     string
	ClientSecret string
	RedirectUrl  string

	AuthUrl    string
	TokenUrl   string
	ArchiveUrl string // base url, must end with a slash

	Resources       []string // eg, myactivity.search
	PollInterval    time.Duration
	MaxPollAttempts int
	PendingTtl      time.Duration
}

// DefaultProvider returns the provider settings before env or file overrides.
func DefaultProvider() Provider {
	return Provider{
		AuthUrl:         DefaultAuthUrl,
		TokenUrl:        DefaultTokenUrl,
		ArchiveUrl:      DefaultArchiveUrl,
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		PendingTtl:      DefaultPendingTtl,
	}
}

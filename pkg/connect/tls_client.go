package connect

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

const (
	// ApiClientTimeout bounds a provider api call, including reading the body.
	ApiClientTimeout = 30 * time.Second

	// DownloadClientTimeout bounds streaming a whole archive to object storage.
	DownloadClientTimeout = 2 * time.Hour

	// ResponseHeaderTimeout bounds the wait for response headers on either client.
	ResponseHeaderTimeout = 30 * time.Second
)

type TlsClientConfig interface {
	Build() (*tls.Config, error)
}

// NewTlsClientConfig builds client tls settings from the system pool plus any
// extra cas in pki.  A nil pki, or one without a key pair, yields a client
// that does not present a certificate.
func NewTlsClientConfig(pki *Pki) TlsClientConfig {
	return &tlsClientConfig{
		Pki: pki,
	}
}

type tlsClientConfig struct {
	Pki *Pki
}

var _ TlsClientConfig = (*tlsClientConfig)(nil)

func (config *tlsClientConfig) Build() (*tls.Config, error) {

	// Load host's CA certificates
	systemCertPool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("failed to get system cert pool: %v", err)
	}

	tlsConfig := &tls.Config{
		RootCAs:    systemCertPool,
		MinVersion: tls.VersionTLS12,
	}

	if config.Pki == nil {
		return tlsConfig, nil
	}

	// ca(s) of internal servers, eg, object storage
	for _, v := range config.Pki.CaFiles {
		ca, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("could not base64 decode ca file: %v", err)
		}
		if ok := systemCertPool.AppendCertsFromPEM(ca); !ok {
			return nil, fmt.Errorf("failed to append additional ca cert to system cert pool")
		}
	}

	if config.Pki.HasKeyPair() {
		certPem, err := base64.StdEncoding.DecodeString(config.Pki.CertFile)
		if err != nil {
			return nil, fmt.Errorf("could not base64 decode cert file: %v", err)
		}

		keyPem, err := base64.StdEncoding.DecodeString(config.Pki.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not base64 decode key file: %v", err)
		}

		cert, err := tls.X509KeyPair(certPem, keyPem)
		if err != nil {
			return nil, fmt.Errorf("could not parse x509 key pair: %v", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// TlsClient is the narrow http surface the provider and retriever depend on.
type TlsClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewTlsClient returns a client whose requests, body reads included, are cut off
// after timeout.  A timeout <= 0 leaves only the response header bound.
func NewTlsClient(config TlsClientConfig, timeout time.Duration) (TlsClient, error) {

	tlsConfig, err := config.Build()
	if err != nil {
		return nil, err
	}

	if timeout < 0 {
		timeout = 0
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSClientConfig:       tlsConfig,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
		},
	}

	return &tlsClient{httpClient: client}, nil
}

var _ TlsClient = (*tlsClient)(nil)

type tlsClient struct {
	httpClient *http.Client
}

func (client *tlsClient) Do(req *http.Request) (*http.Response, error) {
	return client.httpClient.Do(req)
}

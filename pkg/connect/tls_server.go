package connect

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/config"
)

type TlsServerConfig interface {
	Build() (*tls.Config, error)
}

func NewTlsServerConfig(tlsType config.ServerTls, pki *Pki) TlsServerConfig {
	return &tlsServerConfig{
		Type: tlsType,
		Pki:  pki,
	}
}

type tlsServerConfig struct {
	Type config.ServerTls
	Pki  *Pki
}

var _ TlsServerConfig = (*tlsServerConfig)(nil)

// Build returns nil, nil for plain http.
func (c *tlsServerConfig) Build() (*tls.Config, error) {

	if c.Type == config.NoTls || c.Type == "" {
		return nil, nil
	}

	if !c.Pki.HasKeyPair() {
		return nil, fmt.Errorf("%s tls requires a server cert and key", c.Type)
	}

	certPem, err := base64.StdEncoding.DecodeString(c.Pki.CertFile)
	if err != nil {
		return nil, fmt.Errorf("could not base64 decode cert file: %v", err)
	}
	keyPem, err := base64.StdEncoding.DecodeString(c.Pki.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not base64 decode key file: %v", err)
	}

	// public/private key pair
	cert, err := tls.X509KeyPair(certPem, keyPem)
	if err != nil {
		return nil, fmt.Errorf("could not parse x509 key pair: %v", err)
	}

	switch c.Type {
	case config.StandardTls:
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}, nil
	case config.MutualTls:
		// ca(s) of clients
		clientCaPool := x509.NewCertPool()
		for _, v := range c.Pki.CaFiles {
			ca, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("could not base64 decode client ca file: %v", err)
			}
			if ok := clientCaPool.AppendCertsFromPEM(ca); !ok {
				return nil, fmt.Errorf("failed to load client ca cert")
			}
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientCAs:    clientCaPool,
			ClientAuth:   tls.RequireAndVerifyClientCert,
			MinVersion:   tls.VersionTLS12,
		}, nil
	default:
		return nil, fmt.Errorf("invalid tls type: %s", c.Type)
	}
}

// Server is the front door listener lifecycle.
type Server interface {
	// Initialize blocks serving requests until the server is shut down.
	Initialize() error

	// Shutdown gracefully stops the server.
	Shutdown(ctx context.Context) error
}

// NewServer returns a server on addr, eg ":8443".  A nil tls config serves plain http.
func NewServer(addr string, handler http.Handler, tlsConfig *tls.Config) Server {
	return &server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
		},

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentServer)).
			With(slog.String(util.PackageKey, util.PackageConnect)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Server = (*server)(nil)

type server struct {
	http *http.Server

	logger *slog.Logger
}

func (s *server) Initialize() error {

	var err error
	if s.http.TLSConfig != nil {
		s.logger.Info(fmt.Sprintf("starting https server on %s", s.http.Addr))
		err = s.http.ListenAndServeTLS("", "")
	} else {
		s.logger.Info(fmt.Sprintf("starting http server on %s", s.http.Addr))
		err = s.http.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}

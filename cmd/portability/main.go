package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/api"
	"github.com/tdeslauriers/portability/pkg/archive"
	"github.com/tdeslauriers/portability/pkg/authorization"
	"github.com/tdeslauriers/portability/pkg/config"
	"github.com/tdeslauriers/portability/pkg/connect"
	"github.com/tdeslauriers/portability/pkg/data"
	"github.com/tdeslauriers/portability/pkg/pipeline"
	"github.com/tdeslauriers/portability/pkg/provider"
	"github.com/tdeslauriers/portability/pkg/storage"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {

	// a missing .env is expected outside local development
	_ = godotenv.Load()

	def := config.SvcDefinition{
		ServiceName: util.ServicePortability,
		Tls:         config.ServerTls(envOr("PORTABILITY_SERVER_TLS", string(config.NoTls))),
		Requires: config.Requires{
			Db:            true,
			AesSecret:     true,
			DbTls:         os.Getenv("PORTABILITY_DB_TLS") == "true",
			ObjectStorage: true,
			Provider:      true,
		},
	}

	cfg, err := config.Load(def)
	if err != nil {
		slog.Error("failed to load portability service config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	logger := slog.Default().
		With(slog.String(util.ComponentKey, util.ComponentMain)).
		With(slog.String(util.PackageKey, util.PackageMain)).
		With(slog.String(util.ServiceKey, util.ServicePortability))

	if err := run(cfg, logger); err != nil {
		logger.Error("portability service stopped with error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// outbound: provider endpoints and archive downloads
	clientTls, err := connect.NewTlsClientConfig(nil).Build()
	if err != nil {
		return fmt.Errorf("failed to build outbound tls config: %w", err)
	}

	apiClient, err := connect.NewTlsClient(connect.NewTlsClientConfig(nil), connect.ApiClientTimeout)
	if err != nil {
		return fmt.Errorf("failed to create provider http client: %w", err)
	}

	downloadClient, err := connect.NewTlsClient(connect.NewTlsClientConfig(nil), connect.DownloadClientTimeout)
	if err != nil {
		return fmt.Errorf("failed to create archive download http client: %w", err)
	}

	// database
	cryptor, err := data.NewServiceAesGcmKey(cfg.Database.FieldSecret)
	if err != nil {
		return fmt.Errorf("failed to load field level encryption key: %w", err)
	}

	dbTls, err := dbTlsConfig(cfg.Certs)
	if err != nil {
		return err
	}

	db, err := data.NewSqlDbConnector(data.DbUrl{
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Addr:     cfg.Database.Url,
		Name:     cfg.Database.Name,
	}, dbTls).Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// object storage
	store, err := storage.New(storage.Config{
		Url:       cfg.ObjectStorage.Url,
		Bucket:    cfg.ObjectStorage.Bucket,
		AccessKey: cfg.ObjectStorage.AccessKey,
		SecretKey: cfg.ObjectStorage.SecretKey,
		Secure:    cfg.ObjectStorage.Secure,
	}, clientTls)
	if err != nil {
		return err
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to prepare object storage bucket: %w", err)
	}

	// authorization flow
	google := provider.NewClient(cfg.Provider, apiClient)
	pending := authorization.NewPendingStore(cfg.Provider.PendingTtl)

	coordinator := pipeline.NewCoordinator(
		authorization.NewExchanger(google),
		authorization.NewRepository(db, cryptor),
		google,
		storage.NewRetriever(downloadClient, store, ""),
		google,
		pipeline.Config{
			Poll: archive.PollConfig{
				Interval:    cfg.Provider.PollInterval,
				MaxAttempts: cfg.Provider.MaxPollAttempts,
			},
		},
	)

	handler := api.NewRouter(
		api.NewAuthHandler(
			authorization.NewInitiator(google, pending),
			authorization.NewAcceptor(pending, coordinator),
		),
		coordinator,
	)

	serverTls, err := connect.NewTlsServerConfig(cfg.Tls, serverPki(cfg.Certs)).Build()
	if err != nil {
		return fmt.Errorf("failed to build server tls config: %w", err)
	}
	server := connect.NewServer(cfg.ServicePort, handler, serverTls)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coordinator.Run(gctx)
	})

	g.Go(func() error {
		return server.Initialize()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info(fmt.Sprintf("portability service started, requesting %d resource(s)", len(cfg.Provider.Resources)))

	return g.Wait()
}

// dbTlsConfig returns nil when no database client certs are configured.
func dbTlsConfig(certs config.Certs) (*tls.Config, error) {

	if certs.DbClientCert == nil || certs.DbClientKey == nil {
		return nil, nil
	}

	pki := &connect.Pki{
		CertFile: *certs.DbClientCert,
		KeyFile:  *certs.DbClientKey,
	}
	if certs.DbCaCert != nil {
		pki.CaFiles = []string{*certs.DbCaCert}
	}

	tlsConfig, err := connect.NewTlsClientConfig(pki).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build db tls config: %w", err)
	}
	return tlsConfig, nil
}

func serverPki(certs config.Certs) *connect.Pki {

	pki := &connect.Pki{}
	if certs.ServerCert != nil {
		pki.CertFile = *certs.ServerCert
	}
	if certs.ServerKey != nil {
		pki.KeyFile = *certs.ServerKey
	}
	if certs.ServerCa != nil {
		pki.CaFiles = []string{*certs.ServerCa}
	}
	return pki
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

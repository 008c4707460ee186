package data

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type DbUrl struct {
	Username string
	Password string
	Addr     string
	Name     string // database name
}

// Dsn builds the driver dsn, registering tlsConfig under "custom" when present.
func (url *DbUrl) Dsn(tlsConfig *tls.Config) (string, error) {

	cfg := mysql.NewConfig()
	cfg.User = url.Username
	cfg.Passwd = url.Password
	cfg.Net = "tcp"
	cfg.Addr = url.Addr
	cfg.DBName = url.Name
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true // rows affected counts matched rows, so conditional updates can be checked

	if tlsConfig != nil {
		// "custom" key comes from mysql lib
		if err := mysql.RegisterTLSConfig("custom", tlsConfig); err != nil {
			return "", fmt.Errorf("failed to register db tls config: %w", err)
		}
		cfg.TLSConfig = "custom"
	}

	return cfg.FormatDSN(), nil
}

type SqlDbConnector interface {
	Connect(ctx context.Context) (*sql.DB, error)
}

// NewSqlDbConnector returns a mariadb/mysql connector.  A nil tls config connects in plaintext.
func NewSqlDbConnector(url DbUrl, tlsConfig *tls.Config) SqlDbConnector {
	return &mariaDbConnector{
		TlsConfig: tlsConfig,
		Url:       url,
	}
}

var _ SqlDbConnector = (*mariaDbConnector)(nil)

type mariaDbConnector struct {
	TlsConfig *tls.Config
	Url       DbUrl
}

func (c *mariaDbConnector) Connect(ctx context.Context) (*sql.DB, error) {

	dsn, err := c.Url.Dsn(c.TlsConfig)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

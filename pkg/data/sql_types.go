package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// Selector defines the interface for SQL select operations.
// It exists to be passed to the select many/select one functions
// so mocking/testing can be conducted easily.
// Actual usage should pass the *sql.DB or *sql.Tx types since those
// inherently implement these methods.
type Selector interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Execer defines the interface for SQL insert/update operations.
// *sql.DB and *sql.Tx both satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const sqlTimeLayout = "2006-01-02 15:04:05"

// CustomTime handles time scanning from sql to UTC.  NULL scans to the zero time.
type CustomTime struct {
	time.Time
}

// Scan implements the sql.Scanner interface
func (ct *CustomTime) Scan(value interface{}) error {
	var t time.Time
	switch v := value.(type) {
	case nil:
		ct.Time = time.Time{}
		return nil
	case []byte:
		var err error
		t, err = time.Parse(sqlTimeLayout, string(v))
		if err != nil {
			return err
		}
	case string:
		var err error
		t, err = time.Parse(sqlTimeLayout, v)
		if err != nil {
			return err
		}
	case time.Time:
		t = v
	default:
		return fmt.Errorf("unsupported data type for time scan: %T", value)
	}
	ct.Time = t.UTC()
	return nil
}

// Value implements the driver.Valuer interface
func (ct CustomTime) Value() (driver.Value, error) {
	if ct.IsZero() {
		return nil, nil // NULL for zero time
	}
	return ct.UTC().Format(sqlTimeLayout), nil
}

// Ptr returns nil for the zero time, otherwise a pointer to a copy.
func (ct CustomTime) Ptr() *time.Time {
	if ct.IsZero() {
		return nil
	}
	t := ct.Time
	return &t
}

// TimeOf wraps an optional time.
func TimeOf(t *time.Time) CustomTime {
	if t == nil {
		return CustomTime{}
	}
	return CustomTime{Time: t.UTC()}
}

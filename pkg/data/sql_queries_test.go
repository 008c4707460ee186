package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSelector implements the Selector interface for testing
type mockSelector struct {
	queryFunc func(query string, args ...interface{}) (*sql.Rows, error)
}

func (m *mockSelector) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(query, args...)
	}
	return nil, errors.New("queryFunc not implemented")
}

func (m *mockSelector) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

// mockExecer implements the Execer interface for testing
type mockExecer struct {
	prepareFunc func(query string) (*sql.Stmt, error)
}

func (m *mockExecer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errors.New("execFunc not implemented")
}

func (m *mockExecer) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if m.prepareFunc != nil {
		return m.prepareFunc(query)
	}
	return nil, errors.New("prepareFunc not implemented")
}

type resourceRow struct {
	Resource string
	State    string
}

func TestSelectRecordsPropagatesQueryError(t *testing.T) {

	dbErr := errors.New("database connection failed")

	var captured []interface{}
	mock := &mockSelector{
		queryFunc: func(query string, args ...interface{}) (*sql.Rows, error) {
			captured = args
			return nil, dbErr
		},
	}

	_, err := SelectRecords[resourceRow](context.Background(), mock, "SELECT resource, state FROM authorization_resource WHERE authorization_uuid = ?", "rec-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, []interface{}{"rec-1"}, captured)
}

func TestInsertRecord(t *testing.T) {

	tests := []struct {
		name    string
		record  interface{}
		prepare func(query string) (*sql.Stmt, error)
		wantErr string
	}{
		{
			name:    "non struct rejected",
			record:  "not a struct",
			wantErr: "must be of type struct",
		},
		{
			name:   "prepare error wrapped",
			record: resourceRow{Resource: "myactivity.search", State: "granted"},
			prepare: func(query string) (*sql.Stmt, error) {
				return nil, errors.New("syntax error")
			},
			wantErr: "failed to prepare insert statement",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := InsertRecord(context.Background(), &mockExecer{prepareFunc: tc.prepare}, "INSERT INTO authorization_resource VALUES (?, ?)", tc.record)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCustomTimeScan(t *testing.T) {

	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   interface{}
		want    time.Time
		wantErr bool
	}{
		{"bytes", []byte("2024-03-01 12:30:00"), want, false},
		{"string", "2024-03-01 12:30:00", want, false},
		{"time", want.In(time.FixedZone("MST", -7*3600)), want, false},
		{"null", nil, time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, true},
		{"unsupported", 42, time.Time{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ct CustomTime
			err := ct.Scan(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(ct.Time))
		})
	}
}

func TestCustomTimeValue(t *testing.T) {

	v, err := CustomTime{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Nil(t, CustomTime{}.Ptr())

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	v, err = TimeOf(&at).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 12:30:00", v)
	assert.Equal(t, at, *TimeOf(&at).Ptr())
}

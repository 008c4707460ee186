package data

import (
	"context"
	"fmt"
	"reflect"
)

// scanTargets returns pointers to every field of the struct behind v, in declaration order.
// reflection is needed to process the rows.Scan(...) function dynamically
func scanTargets(v reflect.Value) []interface{} {
	fields := make([]interface{}, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		fields[i] = v.Field(i).Addr().Interface()
	}
	return fields
}

// SelectRecords executes a select query and maps the results to the generic type defined records slice.
// Column order in the query must match the field order of T.
func SelectRecords[T any](ctx context.Context, db Selector, query string, args ...interface{}) ([]T, error) {

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed execute select records query: %w", err)
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		var record T
		if err := rows.Scan(scanTargets(reflect.ValueOf(&record).Elem())...); err != nil {
			return nil, fmt.Errorf("failed to scan row into record: %w", err)
		}
		results = append(results, record)
	}

	return results, rows.Err()
}

// SelectOneRecord executes a select query and maps the result to the generic type defined record.
// sql.ErrNoRows is wrapped, so callers can errors.Is for it.
func SelectOneRecord[T any](ctx context.Context, db Selector, query string, args ...interface{}) (T, error) {

	var record T

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(scanTargets(reflect.ValueOf(&record).Elem())...); err != nil {
		return record, fmt.Errorf("failed to scan row into record: %w", err)
	}

	return record, nil
}

// InsertRecord executes an insert query using the provided record struct as
// the source for the column field insertion values.
func InsertRecord[T any](ctx context.Context, db Execer, query string, record T) error {

	insert := reflect.ValueOf(record)
	if insert.Kind() != reflect.Struct {
		return fmt.Errorf("insert record must be of type struct")
	}

	// build args slice from struct fields
	fields := make([]interface{}, insert.NumField())
	for i := 0; i < insert.NumField(); i++ {
		fields[i] = insert.Field(i).Interface()

		if ct, ok := fields[i].(CustomTime); ok {
			timeValue, err := ct.Value()
			if err != nil {
				return err
			}
			fields[i] = timeValue
		}
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, fields...); err != nil {
		return fmt.Errorf("failed to execute insert query: %w", err)
	}

	return nil
}

// UpdateRecord executes an update query with the provided arguments
// and returns the number of rows affected.
func UpdateRecord(ctx context.Context, db Execer, query string, args ...interface{}) (int64, error) {

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update statement: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute update query: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected, nil
}

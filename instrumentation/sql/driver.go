// Package sql opens databases that are both traced with OpenTelemetry and
// profiled: every statement runs in a scope on the caller's thread.
package sql

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AlexKent3141/lurien/internal/adapters/apmsql"
)

// Open is like sql.Open for an already registered driverName.
func Open(driverName, dataSourceName string) (*sql.DB, error) {
	wrapped, err := apmsql.Wrap(driverName)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open(wrapped, dataSourceName,
		otelsql.WithAttributes(semconv.DBSystemKey.String(driverName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open instrumented database: %w", err)
	}
	return db, nil
}

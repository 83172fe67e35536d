// Package querytool implements the action group the agent calls to look
// at the dataset: getschema lists tables and columns from the data
// catalog, querydatabase runs SQL on the query engine.
package querytool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sqlchat/querytool")

// Column describes one table column.
type Column struct {
	Name    string `json:"Name"`
	Type    string `json:"Type"`
	Comment string `json:"Comment,omitempty"`
}

// TableSchema is the getschema answer for one table.
type TableSchema struct {
	Table       string   `json:"Table"`
	Description string   `json:"Description"`
	Columns     []Column `json:"Columns"`
}

// Record is one result row. It marshals as a JSON object whose keys keep
// the column order of the result set.
type Record struct {
	Columns []string
	Values  []any
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QueryError is a failed SQL statement. The agent receives it as a 400
// body so it can correct the query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string { return "Error: " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// ErrorBody is the JSON body returned to the agent for failed calls.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Catalog lists table metadata of a database.
type Catalog interface {
	Tables(ctx context.Context, database string) ([]TableSchema, error)
}

// Engine runs SQL against a database.
type Engine interface {
	Query(ctx context.Context, database, sql string) ([]Record, error)
}

// Service backs the getschema and querydatabase operations.
type Service struct {
	catalog  Catalog
	engine   Engine
	database string
}

// NewService creates a Service for one database.
func NewService(catalog Catalog, engine Engine, database string) *Service {
	return &Service{catalog: catalog, engine: engine, database: database}
}

// GetSchema returns the schema of every table in the database.
func (s *Service) GetSchema(ctx context.Context) ([]TableSchema, error) {
	ctx, span := tracer.Start(ctx, "querytool.getschema")
	defer span.End()
	span.SetAttributes(attribute.String("db.name", s.database))

	tables, err := s.catalog.Tables(ctx, s.database)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get tables")
		return nil, fmt.Errorf("get schema of %s: %w", s.database, err)
	}
	if tables == nil {
		tables = []TableSchema{}
	}
	span.SetAttributes(attribute.Int("db.tables", len(tables)))
	return tables, nil
}

// QueryDatabase runs query. Invalid SQL yields a *QueryError.
func (s *Service) QueryDatabase(ctx context.Context, query string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "querytool.querydatabase")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.name", s.database),
		attribute.String("db.statement", query),
	)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &QueryError{Err: errors.New("query must not be empty")}
	}

	log.Info().Str("database", s.database).Str("query", query).Msg("SQL Query")
	records, err := s.engine.Query(ctx, s.database, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query")
		var qe *QueryError
		if errors.As(err, &qe) {
			return nil, qe
		}
		return nil, &QueryError{Query: query, Err: err}
	}
	if records == nil {
		records = []Record{}
	}
	span.SetAttributes(attribute.Int("db.rows", len(records)))
	return records, nil
}

// errorStatus maps an operation error to an HTTP status and body.
func errorStatus(err error) (int, ErrorBody) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return http.StatusBadRequest, ErrorBody{StatusCode: http.StatusBadRequest, Message: qe.Error()}
	}
	return http.StatusInternalServerError, ErrorBody{StatusCode: http.StatusInternalServerError, Message: err.Error()}
}

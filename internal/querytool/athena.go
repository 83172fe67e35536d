package querytool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/cenkalti/backoff/v4"
)

// AthenaAPI is the part of the Athena client we use.
type AthenaAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// AthenaOptions configure an AthenaEngine.
type AthenaOptions struct {
	// OutputLocation is the s3:// prefix Athena writes results to.
	OutputLocation string
	WorkGroup      string
	// MaxRows caps the number of records returned. Zero means no cap.
	MaxRows int
	// MaxWait bounds how long a query may run.
	MaxWait time.Duration
	// PollInterval is the first delay between status checks.
	PollInterval time.Duration
}

// AthenaEngine runs queries on Amazon Athena.
type AthenaEngine struct {
	api  AthenaAPI
	opts AthenaOptions
}

var errQueryRunning = errors.New("query still running")

// NewAthenaEngine wraps an Athena client.
func NewAthenaEngine(api AthenaAPI, opts AthenaOptions) *AthenaEngine {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return &AthenaEngine{api: api, opts: opts}
}

// Query starts sql, waits for it to finish and reads back its results.
// A query Athena rejects or fails is returned as *QueryError.
func (e *AthenaEngine) Query(ctx context.Context, database, sql string) ([]Record, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{Database: aws.String(database)},
	}
	if e.opts.OutputLocation != "" {
		in.ResultConfiguration = &athenatypes.ResultConfiguration{OutputLocation: aws.String(e.opts.OutputLocation)}
	}
	if e.opts.WorkGroup != "" {
		in.WorkGroup = aws.String(e.opts.WorkGroup)
	}

	start, err := e.api.StartQueryExecution(ctx, in)
	if err != nil {
		var invalid *athenatypes.InvalidRequestException
		if errors.As(err, &invalid) {
			return nil, &QueryError{Query: sql, Err: errors.New(invalid.ErrorMessage())}
		}
		return nil, fmt.Errorf("start query: %w", err)
	}
	id := aws.ToString(start.QueryExecutionId)

	if err := e.wait(ctx, sql, id); err != nil {
		return nil, err
	}
	return e.results(ctx, id)
}

func (e *AthenaEngine) wait(ctx context.Context, sql, id string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.PollInterval
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = e.opts.MaxWait

	op := func() error {
		out, err := e.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(id)})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("get query execution %s: %w", id, err))
		}
		if out.QueryExecution == nil || out.QueryExecution.Status == nil {
			return errQueryRunning
		}
		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(status.StateChangeReason)
			if reason == "" {
				reason = "query " + strings.ToLower(string(status.State))
			}
			return backoff.Permanent(&QueryError{Query: sql, Err: errors.New(reason)})
		default:
			return errQueryRunning
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errQueryRunning) {
			return fmt.Errorf("query %s did not finish within %s", id, e.opts.MaxWait)
		}
		return err
	}
	return nil
}

func (e *AthenaEngine) results(ctx context.Context, id string) ([]Record, error) {
	var (
		records []Record
		columns []string
		types   []string
		token   *string
		first   = true
	)
	for {
		out, err := e.api.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(id),
			NextToken:        token,
		})
		if err != nil {
			return nil, fmt.Errorf("get query results %s: %w", id, err)
		}
		if out.ResultSet == nil {
			break
		}
		if columns == nil && out.ResultSet.ResultSetMetadata != nil {
			for _, ci := range out.ResultSet.ResultSetMetadata.ColumnInfo {
				columns = append(columns, aws.ToString(ci.Name))
				types = append(types, aws.ToString(ci.Type))
			}
		}

		rows := out.ResultSet.Rows
		// SELECT results repeat the column names as their first row.
		if first && len(rows) > 0 && isHeaderRow(rows[0], columns) {
			rows = rows[1:]
		}
		first = false

		for _, row := range rows {
			records = append(records, record(row, columns, types))
			if e.opts.MaxRows > 0 && len(records) >= e.opts.MaxRows {
				return records, nil
			}
		}

		token = out.NextToken
		if token == nil || *token == "" {
			break
		}
	}
	return records, nil
}

func isHeaderRow(row athenatypes.Row, columns []string) bool {
	if len(row.Data) != len(columns) || len(columns) == 0 {
		return false
	}
	for i, d := range row.Data {
		if aws.ToString(d.VarCharValue) != columns[i] {
			return false
		}
	}
	return true
}

func record(row athenatypes.Row, columns, types []string) Record {
	r := Record{Columns: columns, Values: make([]any, len(columns))}
	for i := range columns {
		if i >= len(row.Data) {
			break
		}
		var typ string
		if i < len(types) {
			typ = types[i]
		}
		r.Values[i] = datum(typ, row.Data[i].VarCharValue)
	}
	return r
}

// datum converts Athena's text representation into a JSON-friendly value
// based on the column type.
func datum(typ string, v *string) any {
	if v == nil {
		return nil
	}
	s := *v
	switch strings.ToLower(typ) {
	case "tinyint", "smallint", "integer", "int", "bigint":
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return json.Number(s)
		}
	case "float", "real", "double":
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s)
		}
	case "boolean":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	if strings.HasPrefix(strings.ToLower(typ), "decimal") {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s)
		}
	}
	return s
}

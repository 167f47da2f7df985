package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the SQL tools need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ValidTables are the analytics tables the model may inspect.
var ValidTables = []string{"sales_data", "customers", "products"}

const sampleRowLimit = 5

type executeSQLInput struct {
	Query string `json:"query" jsonschema:"a SQL SELECT statement to run against the analytics database"`
}

type tableInfoInput struct {
	TableName string `json:"table_name" jsonschema:"one of: sales_data, customers, products"`
}

type analyticsSummaryInput struct{}

// NewSQL builds the database tools against the given query executor.
func NewSQL(db Querier) ([]*Tool, error) {
	executeSQL, err := New("execute_sql_query",
		"Execute a SQL SELECT query against the PostgreSQL analytics database. "+
			"Use this to fetch data for analysis, reports, or data questions. Only SELECT queries are allowed.",
		func(ctx context.Context, in executeSQLInput) (string, error) {
			return executeQuery(ctx, db, in.Query), nil
		})
	if err != nil {
		return nil, err
	}

	tableInfo, err := New("get_table_info",
		"Get information about a table including column names and sample data. "+
			"Valid tables: sales_data, customers, products.",
		func(ctx context.Context, in tableInfoInput) (string, error) {
			if !validTable(in.TableName) {
				return Errorf("invalid table %q, choose from: %s", in.TableName, strings.Join(ValidTables, ", ")), nil
			}
			return executeQuery(ctx, db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", in.TableName, sampleRowLimit)), nil
		})
	if err != nil {
		return nil, err
	}

	summary, err := New("get_analytics_summary",
		"Get a high-level summary of the analytics database: record counts, date range, "+
			"total revenue, and the distinct regions, segments and categories.",
		func(ctx context.Context, _ analyticsSummaryInput) (string, error) {
			return analyticsSummary(ctx, db), nil
		})
	if err != nil {
		return nil, err
	}

	return []*Tool{executeSQL, tableInfo, summary}, nil
}

func validTable(name string) bool {
	for _, t := range ValidTables {
		if name == t {
			return true
		}
	}
	return false
}

// executeQuery runs one SELECT and renders the standard result envelope.
// Non-SELECT statements and query errors come back as failure envelopes.
func executeQuery(ctx context.Context, db Querier, query string) string {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return Errorf("only SELECT queries are allowed")
	}

	data, columns, err := queryRows(ctx, db, query)
	if err != nil {
		return Errorf("query failed: %v", err)
	}

	b, err := json.Marshal(map[string]any{
		"success":   true,
		"data":      data,
		"row_count": len(data),
		"columns":   columns,
	})
	if err != nil {
		return Errorf("encode result: %v", err)
	}
	return string(b)
}

// queryRows collects a result set as one map per row, keyed by column name.
// Values pass through pgx's default Go mapping; anything JSON cannot encode
// directly is stringified.
func queryRows(ctx context.Context, db Querier, query string) ([]map[string]any, []string, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	data := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = jsonSafe(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return data, columns, nil
}

func jsonSafe(v any) any {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		map[string]any, []any:
		return v
	default:
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("%v", v)
	}
}

// analyticsSummary assembles the database overview from a fixed query set.
// Queries that fail or return nothing are omitted from the summary instead
// of failing the whole call.
func analyticsSummary(ctx context.Context, db Querier) string {
	queries := []struct {
		key   string
		query string
	}{
		{"sales_count", "SELECT COUNT(*) AS count FROM sales_data"},
		{"customer_count", "SELECT COUNT(*) AS count FROM customers"},
		{"product_count", "SELECT COUNT(*) AS count FROM products"},
		{"sales_date_range", "SELECT MIN(date) AS min_date, MAX(date) AS max_date FROM sales_data"},
		{"total_revenue", "SELECT SUM(total_amount) AS total FROM sales_data"},
		{"regions", "SELECT DISTINCT region FROM sales_data ORDER BY region"},
		{"segments", "SELECT DISTINCT segment FROM customers ORDER BY segment"},
		{"categories", "SELECT DISTINCT category FROM products ORDER BY category"},
	}

	summary := make(map[string]any, len(queries))
	for _, q := range queries {
		data, _, err := queryRows(ctx, db, q.query)
		if err != nil || len(data) == 0 {
			continue
		}
		if len(data) == 1 {
			summary[q.key] = data[0]
		} else {
			summary[q.key] = data
		}
	}

	b, err := json.Marshal(map[string]any{"success": true, "summary": summary})
	if err != nil {
		return Errorf("encode summary: %v", err)
	}
	return string(b)
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/ports/adapter"
)

var _ adapter.RecordReader = (*TableReader)(nil)

// TableReader streams every row of one table of a foreign SQLite file.
type TableReader struct {
	db    *sql.DB
	rows  *sql.Rows
	cols  []string
	Table string
}

// OpenTableReader opens path read-only. With table == "" it reads "users",
// then "recipients", then the only table of the file.
func OpenTableReader(ctx context.Context, path, table string) (*TableReader, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if table == "" {
		table, err = pickTable(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(table, `"`, `""`)))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = db.Close()
		return nil, err
	}
	return &TableReader{db: db, rows: rows, cols: cols, Table: table}, nil
}

func pickTable(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	for _, want := range []string{"users", "recipients"} {
		for _, t := range tables {
			if strings.EqualFold(t, want) {
				return t, nil
			}
		}
	}
	if len(tables) == 1 {
		return tables[0], nil
	}
	return "", fmt.Errorf("%w: cannot choose a table among %v", domain.ErrUnsupportedFormat, tables)
}

func (r *TableReader) Columns() []string { return r.cols }

func (r *TableReader) Next() ([]string, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	vals := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = stringify(v)
	}
	return out, nil
}

func (r *TableReader) Close() error {
	_ = r.rows.Close()
	return r.db.Close()
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

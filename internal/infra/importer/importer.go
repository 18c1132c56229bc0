// Package importer opens recipient lists uploaded by admins as record streams.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/infra/db/sqlite"
)

var sqliteMagic = []byte("SQLite format 3\x00")

// DetectFormat picks the format from the file name, falling back to the
// file's leading bytes when the extension is unknown.
func DetectFormat(name string, head []byte) (model.ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return model.FormatCSV, nil
	case ".db", ".sqlite", ".sqlite3":
		return model.FormatSQLite, nil
	}
	if len(head) >= len(sqliteMagic) && string(head[:len(sqliteMagic)]) == string(sqliteMagic) {
		return model.FormatSQLite, nil
	}
	if len(head) > 0 && strings.ContainsRune(string(head), ',') {
		return model.FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
}

// Open returns a reader over the file at path. An empty format is detected.
func Open(ctx context.Context, path string, format model.ImportFormat) (adapter.RecordReader, error) {
	if format == "" {
		head, err := readHead(path, 64)
		if err != nil {
			return nil, err
		}
		if format, err = DetectFormat(path, head); err != nil {
			return nil, err
		}
	}
	switch format {
	case model.FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := NewCSVReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return r, nil
	case model.FormatSQLite:
		return sqlite.OpenTableReader(ctx, path, "")
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:m], nil
}

// CSVReader reads a header line followed by records. Comma, semicolon and tab
// separators are recognised from the header.
type CSVReader struct {
	r    *csv.Reader
	c    io.Closer
	cols []string
}

var _ adapter.RecordReader = (*CSVReader)(nil)

func NewCSVReader(rc io.ReadCloser) (*CSVReader, error) {
	br := bufio.NewReader(rc)
	peek, _ := br.Peek(4096)
	r := csv.NewReader(br)
	r.Comma = sniffSeparator(peek)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	return &CSVReader{r: r, c: rc, cols: header}, nil
}

func sniffSeparator(peek []byte) rune {
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, n := ',', strings.Count(line, ",")
	for _, sep := range []rune{';', '\t'} {
		if c := strings.Count(line, string(sep)); c > n {
			best, n = sep, c
		}
	}
	return best
}

func (c *CSVReader) Columns() []string { return c.cols }

func (c *CSVReader) Next() ([]string, error) {
	for {
		rec, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

func (c *CSVReader) Close() error { return c.c.Close() }

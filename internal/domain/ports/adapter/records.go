package adapter

// RecordReader yields the rows of an external recipient list (CSV file,
// legacy SQLite table). Values are rendered as strings; NULL becomes "".
type RecordReader interface {
	Columns() []string
	// Next returns io.EOF after the last row.
	Next() ([]string, error)
	Close() error
}

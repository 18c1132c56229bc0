package model

// ImportReport summarizes one merge of an external recipient list.
type ImportReport struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// ImportFormat identifies an import/export file type.
type ImportFormat string

const (
	FormatCSV    ImportFormat = "csv"
	FormatSQLite ImportFormat = "sqlite"
)

// Stats is the admin overview.
type Stats struct {
	Recipients int `json:"recipients"`
	ActiveWeek int `json:"active_7d"`
	Recallable int `json:"recallable"`
}

package application

import (
	"io"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
)

// AdminRequest is the closed set of admin operations. Only the types in this
// file implement it.
type AdminRequest interface {
	Name() string
	adminRequest()
}

// BroadcastRequest fans Payload out to every recipient. AdminChatID receives
// the progress message; zero means nobody does.
type BroadcastRequest struct {
	AdminChatID int64
	Payload     model.Payload
}

// RecallRequest deletes every message of the last broadcast and reports the
// summary to AdminChatID when it is set.
type RecallRequest struct {
	AdminChatID int64
}

type StatsRequest struct{}

// ExportRequest writes the recipients to W as CSV, or as a database snapshot
// when Format is model.FormatSQLite.
type ExportRequest struct {
	Format model.ImportFormat
	W      io.Writer
}

// ImportRequest merges every record of Source into the store. Source is
// closed by the caller.
type ImportRequest struct {
	Source adapter.RecordReader
}

func (BroadcastRequest) Name() string { return "broadcast" }
func (RecallRequest) Name() string    { return "recall" }
func (StatsRequest) Name() string     { return "stats" }
func (ExportRequest) Name() string    { return "export" }
func (ImportRequest) Name() string    { return "import" }

func (BroadcastRequest) adminRequest() {}
func (RecallRequest) adminRequest()    {}
func (StatsRequest) adminRequest()     {}
func (ExportRequest) adminRequest()    {}
func (ImportRequest) adminRequest()    {}

// AdminResult carries the outcome of the request that produced it; the other
// fields stay zero.
type AdminResult struct {
	Delivery model.DeliveryReport
	Recall   model.RecallReport
	Stats    model.Stats
	Exported int
	Import   model.ImportReport
}

package model

import (
	"strings"
	"unicode/utf8"
)

// PayloadKind tells the engine how to deliver a broadcast.
type PayloadKind int

const (
	PayloadText PayloadKind = iota + 1
	PayloadCopy
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// MessageRef points at an existing Telegram message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Payload is either literal text or a reference to a message that is copied
// verbatim (media, captions and formatting preserved) to every recipient.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Source MessageRef
}

func TextPayload(text string) Payload { return Payload{Kind: PayloadText, Text: text} }

func CopyPayload(chatID int64, messageID int) Payload {
	return Payload{Kind: PayloadCopy, Source: MessageRef{ChatID: chatID, MessageID: messageID}}
}

func (p Payload) Valid() bool {
	switch p.Kind {
	case PayloadText:
		return strings.TrimSpace(p.Text) != ""
	case PayloadCopy:
		return p.Source.ChatID != 0 && p.Source.MessageID > 0
	default:
		return false
	}
}

// Preview renders the payload for the admin status line. Text is cut at max
// runes and marked with an ellipsis.
func (p Payload) Preview(max int) string {
	if p.Kind == PayloadCopy {
		return "[copied message]"
	}
	text := strings.TrimSpace(p.Text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:max]), isSpace) + "…"
}

func isSpace(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }

// DeliveryReport is the outcome of one fan-out pass.
// Sent+Blocked+Failed always equals Total.
type DeliveryReport struct {
	JobID   string `json:"job_id,omitempty"`
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Blocked int    `json:"blocked"`
	Failed  int    `json:"failed"`
}

// RecallReport is the outcome of one bulk delete. OK+Err equals the number of
// recall entries present when the recall started.
type RecallReport struct {
	OK  int `json:"ok"`
	Err int `json:"err"`
}

// RecallEntry maps a recipient to the message the last broadcast produced.
type RecallEntry struct {
	ChatID    int64
	MessageID int
}

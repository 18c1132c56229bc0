package model

import (
	"strconv"
	"strings"
	"time"

	"telegram-storefront-bot/internal/domain"
)

// Recipient is a Telegram user known to the storefront. FirstSeen is set once
// when the recipient is first stored; LastSeen moves on every interaction.
type Recipient struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	FirstSeen  time.Time
	LastSeen   time.Time
}

func NewRecipient(tgID int64, username, firstName, lastName string) (*Recipient, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Recipient{
		TelegramID: tgID,
		Username:   strings.TrimSpace(username),
		FirstName:  strings.TrimSpace(firstName),
		LastName:   strings.TrimSpace(lastName),
		FirstSeen:  now,
		LastSeen:   now,
	}, nil
}

func (r *Recipient) IsZero() bool { return r == nil || r.TelegramID == 0 }

// Touch refreshes the mutable display attributes and the last-seen time.
// Empty values never overwrite known ones.
func (r *Recipient) Touch(username, firstName, lastName string) {
	if v := strings.TrimSpace(username); v != "" {
		r.Username = v
	}
	if v := strings.TrimSpace(firstName); v != "" {
		r.FirstName = v
	}
	if v := strings.TrimSpace(lastName); v != "" {
		r.LastName = v
	}
	r.LastSeen = time.Now().UTC()
}

// DisplayName prefers the @handle, then the full name, then the numeric id.
func (r *Recipient) DisplayName() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	full := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if full != "" {
		return full
	}
	return "id:" + strconv.FormatInt(r.TelegramID, 10)
}

package app

import (
	"time"

	"github.com/jsamuelsen/quote-feed/internal/domain"
)

// Engagement event subjects.
const (
	SubjectLikes = "quotes.likes"
	SubjectSaves = "quotes.saves"
)

// EngagementEvent is published after a toggle changed durable state.
type EngagementEvent struct {
	UserID   string
	QuoteID  string
	Relation domain.Relation
	Action   domain.Action
	At       time.Time
}

// EngagementPayload is the serialized event body.
type EngagementPayload struct {
	UserID  string `json:"user_id"`
	QuoteID string `json:"quote_id"`
	Action  string `json:"action"`
	TS      string `json:"ts"`
}

func (e EngagementEvent) EventType() string {
	if e.Relation == domain.RelationSave {
		return SubjectSaves
	}

	return SubjectLikes
}

// Key is "user:quote", so one pair's events stay ordered on a partition.
func (e EngagementEvent) Key() string {
	return e.UserID + ":" + e.QuoteID
}

func (e EngagementEvent) Payload() any {
	return EngagementPayload{
		UserID:  e.UserID,
		QuoteID: e.QuoteID,
		Action:  e.Action.Verb(e.Relation),
		TS:      e.At.UTC().Format(time.RFC3339),
	}
}

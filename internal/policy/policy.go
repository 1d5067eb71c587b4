package policy

import (
	"context"
	"time"

	"github.com/tipbot/tipfilter/internal/chat"
)

// Action is the pipeline's verdict for a message.
type Action string

const (
	ActionPass Action = "pass"
	ActionFlag Action = "flag"
)

// Decision is written back to the caller for every processed message.
type Decision struct {
	ChatID    int64         `json:"chat_id"`
	MessageID int           `json:"message_id"`
	UserID    int64         `json:"user_id,omitempty"`
	Action    Action        `json:"action"`
	Filter    string        `json:"filter,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Keyword   *KeywordMatch `json:"keyword,omitempty"`
}

// FilterResult is the structured return type for all filters.
type FilterResult struct {
	Allowed  bool
	Filter   string
	Reason   string
	Duration time.Duration
	// Final ends the pipeline on an allowed result.
	Final   bool
	Keyword *KeywordMatch
}

// Filter is implemented by every pipeline stage.
type Filter interface {
	Match(ctx context.Context, msg *chat.Message) (FilterResult, error)
}

// NewResultFunc returns a helper that stamps results with the filter name
// and the time spent since the helper was created.
func NewResultFunc(filterName string) func(allowed bool, reason string, err error) (FilterResult, error) {
	start := time.Now()
	return func(allowed bool, reason string, err error) (FilterResult, error) {
		return FilterResult{
			Allowed:  allowed,
			Filter:   filterName,
			Reason:   reason,
			Duration: time.Since(start),
		}, err
	}
}

// RejectionHandler observes every flagged message.
type RejectionHandler interface {
	HandleRejection(ctx context.Context, msg *chat.Message, filterName string)
}

// MetricsCollector receives every filter result.
type MetricsCollector interface {
	Report(res FilterResult)
}

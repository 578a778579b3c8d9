package extract

import (
	"errors"
	"fmt"
	"time"

	"skypescrape/internal/message"
)

// ErrListDiscovery marks a failure to locate the conversation list. Nothing
// can be extracted after it, so the walk stops.
var ErrListDiscovery = errors.New("conversation list not found")

// Stage is a step of the per-conversation state machine.
type Stage string

const (
	StageLocateList  Stage = "locate_list"
	StageOpen        Stage = "open_conversation"
	StageAwaitRegion Stage = "await_region"
	StageLoadHistory Stage = "load_history"
	StageScrape      Stage = "scrape_messages"
	StageReturn      Stage = "return_to_list"
	StageDone        Stage = "done"
)

// ExtractionError is the failure of one conversation.
type ExtractionError struct {
	Index int // 1-based position in the conversation list
	Stage Stage
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("conversation %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ConversationResult is the outcome of one conversation. Err is nil on
// success, otherwise an *ExtractionError; Stage is where processing stopped.
type ConversationResult struct {
	Index    int
	Stage    Stage
	Nodes    int // message nodes observed after loading history
	Messages int // new records accepted into the run buffer
	Err      error
}

// OK reports whether the conversation completed every stage.
func (r ConversationResult) OK() bool {
	return r.Err == nil
}

// Report summarizes one walk.
type Report struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Discovered    int
	Limit         int
	Conversations []ConversationResult
	Records       []message.Record
}

// Processed returns the number of conversations opened.
func (r *Report) Processed() int {
	return len(r.Conversations)
}

// Failed returns the number of conversations that hit an error.
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Conversations {
		if !c.OK() {
			n++
		}
	}
	return n
}

// Errors returns the per-conversation errors in list order.
func (r *Report) Errors() []error {
	var errs []error
	for _, c := range r.Conversations {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errs
}

// Duration returns how long the walk took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

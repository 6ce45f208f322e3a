package dispatch

import (
	"time"

	"wasend/internal/contacts"
)

// Status is the terminal outcome for one contact. It is set exactly once.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome record for one contact after all attempts.
// Attempts is 1..RetryLimit+1 for Sent/Failed.
type Result struct {
	Contact  contacts.Contact
	Status   Status
	Attempts int
	Err      error
	Took     time.Duration
}

// Summary aggregates one dispatch pass. It is valid even after an
// interrupt, covering the contacts processed so far.
type Summary struct {
	Sent    int
	Failed  int
	Skipped int
	Results []Result
}

func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusSent:
		s.Sent++
	case StatusFailed:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// Config bounds the retry loop and the randomized send cadence.
type Config struct {
	// RetryLimit is the number of extra attempts after the first one.
	RetryLimit int
	// A delay drawn uniformly from [MinDelay, MaxDelay] precedes every
	// attempt, keeping the request cadence irregular.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Event types published on the bus.
const (
	EventResult = "dispatch.result"
	EventSkip   = "dispatch.skip"
)

// ResultEvent is the Data payload of an EventResult event.
type ResultEvent struct {
	Name     string
	Phone    string
	Status   Status
	Attempts int
	Err      string
}

// SkipEvent is the Data payload of an EventSkip event (one invalid row).
type SkipEvent struct {
	Row    int
	Phone  string
	Reason string
}

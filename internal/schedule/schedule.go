// Package schedule parses campaign start schedules. A spec is either a
// standard 5-field cron expression, a cron descriptor ("@daily",
// "@every 1h30m") or a plain Go duration ("45m" = once, 45m from now).
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

type Spec struct {
	Kind  Kind
	Raw   string
	Every time.Duration // KindInterval only

	sched cron.Schedule
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func Parse(raw string) (*Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("schedule: empty spec")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule: duration %q must be > 0", raw)
		}
		return &Spec{Kind: KindInterval, Raw: s, Every: d}, nil
	}
	sched, err := parser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("schedule: %q is neither a duration nor a cron spec: %w", raw, err)
	}
	return &Spec{Kind: KindCron, Raw: s, sched: sched}, nil
}

// Next returns the first activation strictly after t.
func (s *Spec) Next(t time.Time) time.Time {
	if s.Kind == KindInterval {
		return t.Add(s.Every)
	}
	return s.sched.Next(t)
}

package models

import "time"

type UptimeResult int

const (
	UptimeSuccess UptimeResult = iota
	UptimeNotFound
	UptimeNeedsRetry
)

func (r UptimeResult) String() string {
	switch r {
	case UptimeSuccess:
		return "success"
	case UptimeNotFound:
		return "not_found"
	case UptimeNeedsRetry:
		return "needs_retry"
	default:
		return "unknown"
	}
}

type UptimeSession struct {
	Identity  Identity  `json:"identity"`
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`
}

func (s UptimeSession) Duration() time.Duration {
	return s.ExitTime.Sub(s.EntryTime)
}

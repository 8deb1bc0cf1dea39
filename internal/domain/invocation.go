package domain

import "time"

// Invocation describes one completed dispatcher call.
type Invocation struct {
	ID         string
	Hostname   string
	Capability Capability
	Started    time.Time
	Duration   time.Duration
	Err        error
}

// Outcome is "ok" or the error kind of the invocation.
func (i Invocation) Outcome() string {
	return ErrorKind(i.Err)
}

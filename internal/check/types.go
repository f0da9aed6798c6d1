// Package check runs a single status check (HTTP request or local script) and
// classifies its result against a match rule.
package check

import (
	"fmt"
	"time"
)

// Kind selects what a check targets.
type Kind int

const (
	KindWeb Kind = iota
	KindLocalScript
)

func (k Kind) String() string {
	switch k {
	case KindWeb:
		return "API/Website"
	case KindLocalScript:
		return "Local Script"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MatchMode is the rule used to classify a Result as matching or not.
type MatchMode int

const (
	MatchStatusCode MatchMode = iota
	MatchContains
	MatchEquals
	MatchSuccess
	MatchRegex
)

func (m MatchMode) String() string {
	switch m {
	case MatchStatusCode:
		return "Status Code"
	case MatchContains:
		return "Contains"
	case MatchEquals:
		return "Equals"
	case MatchSuccess:
		return "Success"
	case MatchRegex:
		return "Regex"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// Timeout bounds every check.
const Timeout = 10 * time.Second

// Config describes one check and how its result is classified.
type Config struct {
	Kind    Kind
	Target  string
	Method  string
	Headers map[string]string

	// Username enables basic auth on web checks when non-empty.
	Username string
	Password string

	Interval        time.Duration
	PeriodicEnabled bool

	MatchMode  MatchMode
	MatchValue string
}

// Periodic reports whether tick triggers may start a check.
func (c Config) Periodic() bool {
	return c.PeriodicEnabled && c.Interval > 0
}

// Result is the outcome of one check. StatusCode is the HTTP status or
// process exit code, or -1 when the check itself failed.
type Result struct {
	Output     string
	StatusCode int
	Succeeded  bool
}

func failed(err error) Result {
	return Result{Output: err.Error(), StatusCode: -1}
}

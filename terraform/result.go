package terraform

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result captures one terraform command invocation.
type Result struct {
	// Command is the argument string, e.g. "apply -auto-approve".
	Command string `json:"command"`
	// Stdout is the raw standard output.
	Stdout string `json:"stdout,omitempty"`
	// Stderr is the raw standard error.
	Stderr string `json:"stderr,omitempty"`
	// Duration is the wall-clock time the command took.
	Duration time.Duration `json:"duration"`
}

// ExecutionError describes a terraform command that exited non-zero or was
// killed. TimedOut marks commands that exceeded their bound.
type ExecutionError struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("terraform %s timed out after %s", e.Command, e.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("terraform %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// IsTimeout reports whether err is an ExecutionError caused by a timeout.
func IsTimeout(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.TimedOut
}

// Failures that resolve on their own; safe to retry a read-only command.
var transientMarkers = []string{
	"throttling",
	"rate exceeded",
	"connection reset",
	"connection refused",
	"tls handshake timeout",
	"temporary failure",
	"status code: 429",
	"status code: 503",
	"registry service is unreachable",
	"timeout while waiting for state",
}

// IsTransient reports whether err looks like a passing infrastructure
// failure rather than a configuration problem. Timeouts are never transient.
func IsTransient(err error) bool {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.TimedOut {
		return false
	}
	stderr := strings.ToLower(execErr.Stderr)
	for _, marker := range transientMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// ChangeSummary is the add/change/destroy count a plan or apply reports.
type ChangeSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
	// Detected is false when the output carried no recognizable summary.
	Detected bool `json:"detected"`
}

// Empty reports whether the summary describes zero changes.
func (s ChangeSummary) Empty() bool {
	return s.Add == 0 && s.Change == 0 && s.Destroy == 0
}

var (
	planSummaryRe    = regexp.MustCompile(`Plan: (\d+) to add, (\d+) to change, (\d+) to destroy`)
	applySummaryRe   = regexp.MustCompile(`Apply complete! Resources: (\d+) added, (\d+) changed, (\d+) destroyed`)
	destroySummaryRe = regexp.MustCompile(`Destroy complete! Resources: (\d+) destroyed`)
)

// ParseChangeSummary extracts the change counts from plan, apply, or destroy
// output. "No changes" lines yield a detected zero summary.
func ParseChangeSummary(stdout string) ChangeSummary {
	if m := applySummaryRe.FindStringSubmatch(stdout); m != nil {
		return ChangeSummary{Add: mustAtoi(m[1]), Change: mustAtoi(m[2]), Destroy: mustAtoi(m[3]), Detected: true}
	}
	if m := destroySummaryRe.FindStringSubmatch(stdout); m != nil {
		return ChangeSummary{Destroy: mustAtoi(m[1]), Detected: true}
	}
	if m := planSummaryRe.FindStringSubmatch(stdout); m != nil {
		return ChangeSummary{Add: mustAtoi(m[1]), Change: mustAtoi(m[2]), Destroy: mustAtoi(m[3]), Detected: true}
	}
	if strings.Contains(stdout, "No changes.") {
		return ChangeSummary{Detected: true}
	}
	return ChangeSummary{}
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

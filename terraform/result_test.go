package terraform

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestExecutionErrorMessage(t *testing.T) {
	err := &ExecutionError{Command: "apply -auto-approve", ExitCode: 1, Stderr: "Error: creating EC2 Instance: UnauthorizedOperation"}
	if !strings.Contains(err.Error(), "exit code 1") {
		t.Errorf("expected exit code in message, got %q", err.Error())
	}

	timedOut := &ExecutionError{Command: "apply -auto-approve", TimedOut: true, Duration: 10 * time.Minute}
	if !strings.Contains(timedOut.Error(), "timed out") {
		t.Errorf("expected timeout message, got %q", timedOut.Error())
	}
}

func TestIsTimeout(t *testing.T) {
	if IsTimeout(&ExecutionError{Command: "plan", ExitCode: 1}) {
		t.Error("exit failures are not timeouts")
	}
	if !IsTimeout(&ExecutionError{Command: "plan", TimedOut: true}) {
		t.Error("timed-out executions must report as timeouts")
	}
	wrapped := fmt.Errorf("step failed: %w", &ExecutionError{Command: "init", TimedOut: true})
	if !IsTimeout(wrapped) {
		t.Error("IsTimeout must unwrap")
	}
	if IsTimeout(errors.New("plain")) {
		t.Error("plain errors are not timeouts")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"throttling", &ExecutionError{Stderr: "Error: Throttling: Rate exceeded"}, true},
		{"registry", &ExecutionError{Stderr: "registry service is unreachable"}, true},
		{"status 503", &ExecutionError{Stderr: "unexpected response: status code: 503"}, true},
		{"config error", &ExecutionError{Stderr: "Error: Invalid resource type"}, false},
		{"timeout never transient", &ExecutionError{Stderr: "connection reset", TimedOut: true}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseChangeSummary(t *testing.T) {
	cases := []struct {
		name   string
		stdout string
		want   ChangeSummary
	}{
		{
			"apply",
			"aws_vpc.default: Creation complete\n\nApply complete! Resources: 8 added, 0 changed, 0 destroyed.\n",
			ChangeSummary{Add: 8, Detected: true},
		},
		{
			"destroy",
			"Destroy complete! Resources: 3 destroyed.\n",
			ChangeSummary{Destroy: 3, Detected: true},
		},
		{
			"plan",
			"Plan: 2 to add, 1 to change, 0 to destroy.\n",
			ChangeSummary{Add: 2, Change: 1, Detected: true},
		},
		{
			"no changes",
			"No changes. Your infrastructure matches the configuration.\n",
			ChangeSummary{Detected: true},
		},
		{
			"unrecognized",
			"Initializing the backend...\n",
			ChangeSummary{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseChangeSummary(tc.stdout); got != tc.want {
				t.Errorf("ParseChangeSummary() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestChangeSummaryEmpty(t *testing.T) {
	if !(ChangeSummary{Detected: true}).Empty() {
		t.Error("zero counts are empty")
	}
	if (ChangeSummary{Add: 1, Detected: true}).Empty() {
		t.Error("non-zero counts are not empty")
	}
}

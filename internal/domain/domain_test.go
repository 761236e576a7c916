package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]JobStatus]bool{
		{JobStatusPending, JobStatusProcessing}:   true,
		{JobStatusProcessing, JobStatusCompleted}: true,
		{JobStatusProcessing, JobStatusFailed}:    true,
	}
	all := []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]JobStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestJobStatusHelpers(t *testing.T) {
	if JobStatus("archived").Valid() {
		t.Fatal("unknown status reported valid")
	}
	if !JobStatusFailed.Terminal() || !JobStatusCompleted.Terminal() || JobStatusProcessing.Terminal() {
		t.Fatal("terminal statuses are completed and failed")
	}
}

func TestTruncateError(t *testing.T) {
	if got := TruncateError("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("ö", 20)
	got := TruncateError(long, 7)
	if utf8.RuneCountInString(got) != 7 || !utf8.ValidString(got) {
		t.Fatalf("got %q", got)
	}
	if TruncateError("x", 0) != "" {
		t.Fatal("zero max must yield empty string")
	}
}

func TestValidationErrorListsEveryField(t *testing.T) {
	verr := &ValidationError{}
	if !verr.Empty() {
		t.Fatal("new ValidationError should be empty")
	}
	verr.Add("sessionId", "is required")
	verr.Add("pages", "must not be empty")
	want := "validation failed: sessionId: is required; pages: must not be empty"
	if verr.Error() != want {
		t.Fatalf("Error() = %q, want %q", verr.Error(), want)
	}
}

package infra

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestExtractMarker(t *testing.T) {
	query := "\n--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;\n"
	marker, stmt, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db" {
		t.Fatalf("marker = %q", marker)
	}
	if stmt != "select 1;" {
		t.Fatalf("statement = %q, want %q", stmt, "select 1;")
	}
}

func TestExtractMarkerRejectsUntaggedQueries(t *testing.T) {
	for _, q := range []string{"", "select 1", "--sql not-a-uuid\nselect 1"} {
		if _, _, err := extractMarker(q); !errors.Is(err, ErrMissingMarker) {
			t.Fatalf("extractMarker(%q) error = %v, want ErrMissingMarker", q, err)
		}
	}
}

func TestErrorRowReturnsMarkerError(t *testing.T) {
	runner := &SQLRunner{}
	row := runner.QueryRow(context.Background(), "select 1")
	if err := row.Scan(); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Scan error = %v, want ErrMissingMarker", err)
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("claim: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows should be detected")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatal("unrelated error should not be detected")
	}
}

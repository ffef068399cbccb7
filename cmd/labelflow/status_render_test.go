package main

import (
	"strings"
	"testing"

	"labelflow/internal/store"
)

func TestRenderStatusLineWithoutColor(t *testing.T) {
	line := renderStatusLine("Database", statusOK, "schema v1", false)
	if !strings.Contains(line, "Database:") || !strings.HasSuffix(line, "[OK] schema v1") {
		t.Fatalf("unexpected status line %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no ANSI codes, got %q", line)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	line := renderStatusLine("Ntfy", statusError, "unreachable", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red line, got %q", line)
	}
}

func TestTaskStatusLabel(t *testing.T) {
	tests := map[store.TaskStatus]string{
		store.StatusReadyForReview:  "Ready For Review",
		store.StatusInProgress:      "In Progress",
		store.StatusChangesRequired: "Changes Required",
		"":                          "-",
	}
	for status, want := range tests {
		if got := taskStatusLabel(status); got != want {
			t.Fatalf("taskStatusLabel(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestColorStatusUsesLifecycleKind(t *testing.T) {
	if got := colorStatus(store.StatusVetoed, true); got != ansiRed+"Vetoed"+ansiReset {
		t.Fatalf("vetoed = %q", got)
	}
	if got := colorStatus(store.StatusInProgress, true); got != ansiBlue+"In Progress"+ansiReset {
		t.Fatalf("in progress = %q", got)
	}
	if got := colorStatus(store.StatusCompleted, false); got != "Completed" {
		t.Fatalf("plain completed = %q", got)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" labelflow doctor ", false)
	if len(lines) != 2 || lines[0] != "== labelflow doctor ==" || len(lines[1]) != len(lines[0]) {
		t.Fatalf("unexpected header %q", lines)
	}
}

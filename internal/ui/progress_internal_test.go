package ui

import (
	"context"
	"strings"
	"testing"

	"mirvm/internal/config"
	"mirvm/internal/driver"
)

func TestProgressTracksJobs(t *testing.T) {
	jobs := []driver.Job{}
	for _, name := range []string{"factorial", "dangling"} {
		job, err := driver.LoadJob(name)
		if err != nil {
			t.Fatal(err)
		}
		jobs = append(jobs, job)
	}
	opts := driver.OptionsFrom(config.Default())
	opts.Jobs = 1
	var events []driver.JobEvent
	opts.Observer = func(ev driver.JobEvent) { events = append(events, ev) }
	if _, err := driver.EvaluateAll(context.Background(), jobs, opts); err != nil {
		t.Fatal(err)
	}

	m := NewProgressModel("batch", []string{"factorial", "dangling"}, nil).(*progressModel)
	for _, ev := range events {
		m.Update(eventMsg(ev))
	}
	if m.items[0].status != "ok" || m.items[1].status != "failed" {
		t.Fatalf("unexpected items %+v", m.items)
	}
	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"done: batch (2/2)", "= 3628800 (", "E"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestProgressIgnoresUnknownIndex(t *testing.T) {
	m := NewProgressModel("batch", []string{"a"}, nil).(*progressModel)
	if cmd := m.applyEvent(driver.JobEvent{Index: 5}); cmd != nil {
		t.Fatalf("expected no command")
	}
	if m.items[0].status != "queued" {
		t.Fatalf("expected queued, got %s", m.items[0].status)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"日本語テキスト", 7, "日本..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d): expected %q, got %q", tt.in, tt.width, tt.want, got)
		}
	}
}

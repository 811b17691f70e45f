package orgmode

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sample = `#+TITLE: work
* TODO [#A] Fix login bug :work:auth:
  DEADLINE: <2024-04-12 Fri 17:00>
  :PROPERTIES:
  :ID: 1234
  :END:
  Users cannot log in with SSO.
* Notes
  not a task
** DONE Write changelog
   CLOSED: [2024-04-01 Mon 10:00]
* TODO Plan offsite
  DEADLINE: <2024-05-01 Wed>
* TODOIST sync
`

func TestParse(t *testing.T) {
	items, err := Parse(strings.NewReader(sample), "work.org", time.UTC)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []Item{
		{
			Title:    "Fix login bug",
			Priority: "A",
			Tags:     []string{"work", "auth"},
			Deadline: time.Date(2024, 4, 12, 17, 0, 0, 0, time.UTC),
			Body:     []string{"Users cannot log in with SSO."},
			Source:   "work.org",
		},
		{Title: "Write changelog", Done: true, Source: "work.org"},
		{
			Title:    "Plan offsite",
			Deadline: time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC),
			Source:   "work.org",
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestItemNewTask(t *testing.T) {
	items, err := Parse(strings.NewReader(sample), "work.org", time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	nt := items[0].NewTask()
	if nt.Column != "backlog" || nt.Priority != "critical" {
		t.Errorf("Unexpected column/priority %s/%s", nt.Column, nt.Priority)
	}
	if nt.DueDate == nil || !nt.DueDate.Equal(time.Date(2024, 4, 12, 17, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected due date %v", nt.DueDate)
	}
	if nt.Description != "Users cannot log in with SSO." {
		t.Errorf("Unexpected description %q", nt.Description)
	}

	done := items[1].NewTask()
	if done.Column != "done" || done.Priority != "med" || done.DueDate != nil {
		t.Errorf("Unexpected done task %+v", done)
	}
}

func TestFilterItems(t *testing.T) {
	items, err := Parse(strings.NewReader(sample), "work.org", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	got := FilterItems(items, "auth")
	if len(got) != 1 || got[0].Title != "Fix login bug" {
		t.Errorf("Unexpected filter result %v", got)
	}
}

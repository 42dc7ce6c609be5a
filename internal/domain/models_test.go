package domain

import "testing"

func TestChangeFlags(t *testing.T) {
	c := ChangeTimer | ChangeQuestion
	if !c.Has(ChangeTimer) || !c.Has(ChangeQuestion) {
		t.Fatalf("expected timer and question set in %s", c)
	}
	if c.Has(ChangeMessages) {
		t.Fatalf("did not expect messages in %s", c)
	}
	if c.Has(0) {
		t.Fatalf("empty flag set must never match")
	}
	if got := c.String(); got != "timer|question" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := Change(0).String(); got != "none" {
		t.Fatalf("unexpected string %q", got)
	}
	if !ChangeAll.Has(ChangeOnline | ChangeLeaderboard) {
		t.Fatalf("ChangeAll must cover every flag")
	}
}

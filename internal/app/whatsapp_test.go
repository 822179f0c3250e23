package app

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"347 123 4567":   "+393471234567",
		"03471234567":    "+393471234567",
		"393471234567":   "+393471234567",
		"+393471234567":  "+393471234567",
		"+41 79 1234567": "+41791234567",
		"347-123/4567":   "+393471234567",
		"3471234567":     "+393471234567",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageTemplates(t *testing.T) {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	confirm := confirmationMessage("Anna", start, "10:00")
	if !strings.Contains(confirm, "Anna") || !strings.Contains(confirm, "14/09/2026") || !strings.Contains(confirm, "10:00") {
		t.Fatalf("confirmation message missing details: %q", confirm)
	}

	remind := reminderMessage("Anna", start, "10:00")
	if !strings.Contains(remind, "tra 1 ora") || !strings.Contains(remind, "14/09/2026") {
		t.Fatalf("reminder message missing details: %q", remind)
	}
}

package domain

import (
	"strings"
	"testing"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("archived") {
		t.Error("unknown status must not validate")
	}
}

func TestTruncateError(t *testing.T) {
	short := "disk full"
	if got := TruncateError(short); got != short {
		t.Errorf("short message must pass through, got %q", got)
	}

	long := strings.Repeat("я", MaxErrorMessageLen+100)
	got := TruncateError(long)
	if runeLen := len([]rune(got)); runeLen != MaxErrorMessageLen {
		t.Errorf("truncated length %d runes, want %d", runeLen, MaxErrorMessageLen)
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation must keep the message prefix")
	}
}

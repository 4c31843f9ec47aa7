package conversation

import (
	"strings"
	"testing"
	"time"
)

func TestCanonicalPairIsOrderIndependent(t *testing.T) {
	a := CanonicalPair("zoe", "adam")
	b := CanonicalPair("adam", "zoe")
	if a[0] != b[0] || a[1] != b[1] {
		t.Fatalf("pairs differ: %v vs %v", a, b)
	}
	if a[0] != "adam" || a[1] != "zoe" {
		t.Fatalf("pair not sorted: %v", a)
	}
	if PairKey("zoe", "adam") != PairKey("adam", "zoe") {
		t.Fatalf("pair keys differ by argument order")
	}
}

func TestCounterpart(t *testing.T) {
	conv := &Conversation{Participants: CanonicalPair("adam", "zoe")}

	other, err := conv.Counterpart("adam")
	if err != nil || other != "zoe" {
		t.Fatalf("counterpart(adam) = %q, %v", other, err)
	}
	other, err = conv.Counterpart("zoe")
	if err != nil || other != "adam" {
		t.Fatalf("counterpart(zoe) = %q, %v", other, err)
	}
	if _, err := conv.Counterpart("mallory"); err == nil {
		t.Fatalf("outsider got a counterpart")
	}
}

func TestUnreadFor(t *testing.T) {
	conv := &Conversation{UnreadBy: []string{"zoe"}}
	if !conv.UnreadFor("zoe") {
		t.Fatalf("zoe should be unread")
	}
	if conv.UnreadFor("adam") {
		t.Fatalf("adam should not be unread")
	}
}

func TestLastActivityPrefersNewerTimestamp(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	conv := &Conversation{UpdatedAt: older, LastMessageAt: newer}
	if !conv.LastActivity().Equal(newer) {
		t.Fatalf("last activity = %v, want message time", conv.LastActivity())
	}
	conv = &Conversation{UpdatedAt: newer, LastMessageAt: older}
	if !conv.LastActivity().Equal(newer) {
		t.Fatalf("last activity = %v, want updated time", conv.LastActivity())
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText(""); err != ErrEmptyMessage {
		t.Fatalf("empty text err = %v", err)
	}
	if err := ValidateText(strings.Repeat("a", MaxMessageLen)); err != nil {
		t.Fatalf("max-length text rejected: %v", err)
	}
	// The bound counts runes, not bytes.
	if err := ValidateText(strings.Repeat("é", MaxMessageLen)); err != nil {
		t.Fatalf("multibyte max-length text rejected: %v", err)
	}
	if err := ValidateText(strings.Repeat("a", MaxMessageLen+1)); err != ErrMessageTooLong {
		t.Fatalf("oversized text err = %v", err)
	}
}

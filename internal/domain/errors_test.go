package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := Conflict("participant %d already registered", 7)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}

	wrapped := fmt.Errorf("register: %w", err)
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected KindConflict through wrapping, got %v", KindOf(wrapped))
	}
	if wrapped.Error() != "register: participant 7 already registered" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestKindOfUnknownIsInternal(t *testing.T) {
	if KindOf(errors.New("connection reset")) != KindInternal {
		t.Fatalf("expected plain errors to be internal")
	}
	if KindInternal.String() != "Internal" || KindInvalidState.String() != "InvalidState" {
		t.Fatalf("unexpected kind names")
	}
}

func TestParseKindRoundTrips(t *testing.T) {
	for _, k := range []Kind{KindNotFound, KindInvalidState, KindForbidden, KindInvalidArgument, KindConflict, KindInternal} {
		if got := ParseKind(k.String()); got != k {
			t.Fatalf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if ParseKind("Teapot") != KindInternal {
		t.Fatalf("unknown kind names must be internal")
	}
}

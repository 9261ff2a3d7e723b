package ace

import (
	"errors"
	"testing"
)

func TestNewErrf(t *testing.T) {
	err := NewErrf("queue '%v' not found", "southbound.agent")
	if err.Error() != "queue 'southbound.agent' not found" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapErrf(t *testing.T) {
	cause := errors.New("broken pipe")
	err := WrapErrf(cause, "failed to publish")

	if !errors.Is(err, cause) {
		t.Fatal("cause must be reachable through errors.Is")
	}
	if err.Error() != "failed to publish, broken pipe" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapErrfNested(t *testing.T) {
	root := NewErrf("root")
	mid := WrapErrf(root, "mid")
	top := WrapErrf(mid, "top")

	if !errors.Is(top, root) {
		t.Fatal("root must be reachable from top")
	}

	var ae *AceErr
	if !errors.As(top, &ae) {
		t.Fatal("expected *AceErr")
	}
}

package cancel

import (
	"context"
	"testing"
)

func TestFireClosesDone(t *testing.T) {
	tok := New(context.Background())

	select {
	case <-tok.Done():
		t.Fatalf("Done() closed before Fire()")
	default:
	}

	tok.Fire()

	select {
	case <-tok.Done():
	default:
		t.Fatalf("Done() not closed after Fire()")
	}

	if !tok.Fired() {
		t.Fatalf("Fired() = false after Fire()")
	}
}

func TestFireIsIdempotent(t *testing.T) {
	tok := New(context.Background())
	tok.Fire()
	tok.Fire() // must not panic
}

func TestParentCancelPropagates(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	child := New(parent)

	cancelParent()

	select {
	case <-child.Done():
	default:
		t.Fatalf("child token did not observe parent cancellation")
	}
}

package notification

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	t.Run("returns every connection with the recipient's prefix", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		c1 := newConnection("7_1000", 4)
		c2 := newConnection("7_2000", 4)
		r.Register(c1.ID(), c1)
		r.Register(c2.ID(), c2)

		conns := r.AllForRecipient(7)
		if len(conns) != 2 {
			t.Fatalf("AllForRecipient(7) returned %d connections, want 2", len(conns))
		}
		if conns["7_1000"] != c1 || conns["7_2000"] != c2 {
			t.Fatal("AllForRecipient(7) returned wrong connections")
		}
	})

	t.Run("prefix match is separator-scoped, recipient 4 never sees recipient 42", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		r.Register("42_1000", newConnection("42_1000", 4))

		if got := r.AllForRecipient(4); len(got) != 0 {
			t.Fatalf("AllForRecipient(4) returned %d connections, want 0", len(got))
		}
		if got := r.AllForRecipient(42); len(got) != 1 {
			t.Fatalf("AllForRecipient(42) returned %d connections, want 1", len(got))
		}
	})

	t.Run("registering the same identifier overwrites", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		old := newConnection("9_1000", 4)
		replacement := newConnection("9_1000", 4)
		r.Register("9_1000", old)
		r.Register("9_1000", replacement)

		if r.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", r.Len())
		}
		if r.AllForRecipient(9)["9_1000"] != replacement {
			t.Fatal("registry still holds the old connection after overwrite")
		}
	})
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	conn := newConnection("3_1000", 4)
	r.Register(conn.ID(), conn)

	// Completion, timeout, and error teardown may all fire for the same
	// connection, concurrently and repeatedly
	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Deregister(conn.ID())
			conn.Close()
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("Len() = %d after concurrent teardown, want 0", r.Len())
	}
}

func TestConnectionSend(t *testing.T) {
	t.Parallel()

	t.Run("delivers while open", func(t *testing.T) {
		t.Parallel()

		conn := newConnection("1_1000", 2)
		if err := conn.Send(Event{ID: "1_1001", Data: "a"}); err != nil {
			t.Fatalf("Send() on open connection failed: %v", err)
		}

		ev := <-conn.Events()
		if ev.ID != "1_1001" {
			t.Errorf("received event ID = %q, want %q", ev.ID, "1_1001")
		}
	})

	t.Run("fails once closed", func(t *testing.T) {
		t.Parallel()

		conn := newConnection("1_1000", 2)
		conn.Close()
		conn.Close() // second close must not panic

		if err := conn.Send(Event{ID: "1_1001"}); !errors.Is(err, ErrDeliveryFailed) {
			t.Fatalf("Send() after Close() = %v, want ErrDeliveryFailed", err)
		}
	})

	t.Run("fails instead of blocking when the buffer is full", func(t *testing.T) {
		t.Parallel()

		conn := newConnection("1_1000", 1)
		if err := conn.Send(Event{ID: "1_1001"}); err != nil {
			t.Fatalf("first Send() failed: %v", err)
		}

		if err := conn.Send(Event{ID: "1_1002"}); !errors.Is(err, ErrDeliveryFailed) {
			t.Fatalf("Send() on full buffer = %v, want ErrDeliveryFailed", err)
		}
	})
}

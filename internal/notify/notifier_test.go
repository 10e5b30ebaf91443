package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type stubSender struct {
	mu     sync.Mutex
	name   string
	titles []string
	fail   bool
}

func (s *stubSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("unreachable")
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *stubSender) Name() string { return s.name }

func newTestNotifier(events []string, senders ...Sender) *Notifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNotifier(senders, events, logger)
}

func TestNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed events are delivered", func(t *testing.T) {
		s := &stubSender{name: "stub"}
		n := newTestNotifier([]string{"market_settled"}, s)

		if err := n.Notify(ctx, "market_settled", "Settled", "done"); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if len(s.titles) != 1 || s.titles[0] != "Settled" {
			t.Errorf("titles = %v", s.titles)
		}
	})

	t.Run("filtered events are dropped silently", func(t *testing.T) {
		s := &stubSender{name: "stub"}
		n := newTestNotifier([]string{"market_settled"}, s)

		if err := n.Notify(ctx, "dispute_raised", "Dispute", "details"); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if len(s.titles) != 0 {
			t.Errorf("filtered event delivered: %v", s.titles)
		}
	})

	t.Run("empty filter allows everything", func(t *testing.T) {
		s := &stubSender{name: "stub"}
		n := newTestNotifier(nil, s)

		if err := n.Notify(ctx, "anything", "Title", "msg"); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if len(s.titles) != 1 {
			t.Errorf("titles = %v", s.titles)
		}
	})

	t.Run("one failing sender does not block the rest", func(t *testing.T) {
		bad := &stubSender{name: "bad", fail: true}
		good := &stubSender{name: "good"}
		n := newTestNotifier(nil, bad, good)

		err := n.Notify(ctx, "event", "Title", "msg")
		if err == nil {
			t.Error("expected combined error from failing sender")
		}
		if len(good.titles) != 1 {
			t.Errorf("healthy sender skipped: %v", good.titles)
		}
	})

	t.Run("no senders is a no-op", func(t *testing.T) {
		n := newTestNotifier(nil)
		if err := n.NotifyAll(ctx, "Title", "msg"); err != nil {
			t.Errorf("NotifyAll: %v", err)
		}
	})
}

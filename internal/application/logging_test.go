package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/room-booking/internal/notify"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":             nil,
		"unauthorized": fmt.Errorf("wrapped: %w", ErrUnauthorized),
		"not_found":    ErrNotFound,
		"validation":   newValidationError("date", "data inválida"),
		"conflict":     &ConflictError{},
		"unexpected":   errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestPublishEventSwallowsFailures(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	called := false
	failing := notify.PublisherFunc(func(ctx context.Context, event notify.Event) error {
		called = true
		return errors.New("broker down")
	})

	publishEvent(context.Background(), failing, logger, notify.Event{Type: notify.ReservationCreated})
	publishEvent(context.Background(), nil, logger, notify.Event{Type: notify.ReservationCreated})

	if !called {
		t.Fatalf("expected publisher to be invoked")
	}
}

func TestPublishEventOutlivesCancelledRequest(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var (
		ctxErr      error
		hasDeadline bool
	)
	publisher := notify.PublisherFunc(func(ctx context.Context, event notify.Event) error {
		ctxErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	publishEvent(ctx, publisher, logger, notify.Event{Type: notify.ReservationCreated})

	if ctxErr != nil {
		t.Fatalf("expected a live publish context, got %v", ctxErr)
	}
	if !hasDeadline {
		t.Fatalf("expected publish context to carry a deadline")
	}
}

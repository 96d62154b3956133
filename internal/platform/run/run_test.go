package run

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"
)

func TestWithSignals_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"server closed", http.ErrServerClosed, 0},
		{"canceled", context.Canceled, 0},
		{"failure", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(zap.NewNop())
			got := r.WithSignals(func(context.Context) error { return tt.err })
			if got != tt.want {
				t.Fatalf("expected exit code %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGraceful_CallsShutdownWithDeadline(t *testing.T) {
	r := New(zap.NewNop())
	called := false
	r.Graceful("test", func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected shutdown context to carry a deadline")
		}
		return nil
	})
	if !called {
		t.Fatal("expected shutdown to be called")
	}
}

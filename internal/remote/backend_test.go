package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGormLoggerWritesToZap(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	gl := newGormLogger(zap.New(core).Sugar())

	ctx := context.Background()
	gl.Info(ctx, "below the warn threshold")
	gl.Error(ctx, "failed to initialize database, got error %v", errors.New("dial tcp: connection refused"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged entry, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Message, "failed to initialize database") {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
}

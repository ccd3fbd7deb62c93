package storage

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorPrunesExpired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewPendingStore(setupTestDB(t), time.Millisecond)
	require.NoError(t, store.Put(ctx, "sess-1", newSubmission("Old")))

	logger, hook := test.NewNullLogger()
	janitor := NewJanitor(store, 5*time.Millisecond, logger)

	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var n int
		err := store.db.QueryRow(`SELECT COUNT(*) FROM pending_submissions`).Scan(&n)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.NotEmpty(t, hook.AllEntries())
}

func TestJanitorDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	janitor := NewJanitor(NewPendingStore(setupTestDB(t), time.Minute), 0, logger)

	done := make(chan struct{})
	go func() {
		janitor.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor with zero interval should return immediately")
	}
}

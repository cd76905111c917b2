package emitter_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/concierge/pkg/adapters/emitter"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/registry"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var _ ports.Emitter = (*emitter.Async)(nil)

type recorder struct {
	mu    sync.Mutex
	kinds []string
	block chan struct{}
}

func (r *recorder) Dispatch(ctx context.Context, kind string, payload map[string]any) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	if kind == "broken" {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.kinds...)
}

func TestAsync_DeliversAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	a := emitter.NewAsync(rec, emitter.WithWorkers(2))
	require.NoError(t, a.Start())

	for i := 0; i < 10; i++ {
		a.Emit(context.Background(), "send_email", map[string]any{"i": i})
	}
	a.Emit(context.Background(), "broken", nil)
	require.NoError(t, a.Close())

	assert.Len(t, rec.got(), 11)
	stats := a.Stats()
	assert.Equal(t, int64(10), stats.Delivered)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestAsync_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{block: make(chan struct{})}
	a := emitter.NewAsync(rec, emitter.WithWorkers(1), emitter.WithQueueSize(1))
	require.NoError(t, a.Start())

	// One in flight, one queued, the rest dropped.
	a.Emit(context.Background(), "a", nil)
	require.Eventually(t, func() bool { return a.Stats().Queued == 0 }, time.Second, 5*time.Millisecond)
	a.Emit(context.Background(), "b", nil)
	done := make(chan struct{})
	go func() {
		a.Emit(context.Background(), "c", nil)
		a.Emit(context.Background(), "d", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(rec.block)
	require.NoError(t, a.Close())
	assert.Equal(t, int64(2), a.Stats().Dropped)
	assert.Equal(t, []string{"a", "b"}, rec.got())
}

func TestAsync_CancelledContextStillDelivers(t *testing.T) {
	defer goleak.VerifyNone(t)

	var seen error
	reg := registry.NewRegistry()
	reg.Register("transfer_human", func(ctx context.Context, kind string, payload map[string]any) error {
		seen = ctx.Err()
		return nil
	})
	a := emitter.NewAsync(reg)
	require.NoError(t, a.Start())

	ctx, cancel := context.WithCancel(context.Background())
	a.Emit(ctx, "transfer_human", nil)
	cancel()
	require.NoError(t, a.Close())

	assert.NoError(t, seen)
	assert.Equal(t, int64(1), a.Stats().Delivered)
}

func TestAsync_EmitAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := emitter.NewAsync(&recorder{})
	require.NoError(t, a.Start())
	require.NoError(t, a.Close())

	a.Emit(context.Background(), "late", nil)
	assert.Equal(t, int64(1), a.Stats().Dropped)
	assert.ErrorIs(t, a.Start(), emitter.ErrClosed)
}

func TestLog_Handle(t *testing.T) {
	var buf bytes.Buffer
	l := emitter.Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Emit(context.Background(), "save_data", map[string]any{"field": "email"})
	assert.Contains(t, buf.String(), "kind=save_data")
	assert.Contains(t, buf.String(), "field=email")
}

func TestPublisher_Handle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := emitter.NewPublisher(client, "")
	ctx := context.Background()

	sub := client.Subscribe(ctx, pub.Channel("transfer_human"))
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, pub.Handle(ctx, "transfer_human", map[string]any{"session_id": "s1"}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, emitter.DefaultChannelPrefix+"transfer_human", msg.Channel)
	assert.Contains(t, msg.Payload, `"session_id":"s1"`)
}

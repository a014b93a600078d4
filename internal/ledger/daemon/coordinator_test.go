package daemon

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localledger/ledger/internal/ledger/db"
	"github.com/localledger/ledger/internal/ledger/netmon"
	"github.com/localledger/ledger/internal/ledger/schema"
	syncer "github.com/localledger/ledger/internal/ledger/sync"
)

// fakeReconciler counts passes and can hold a push open until released.
type fakeReconciler struct {
	pushes atomic.Int32
	pulls  atomic.Int32

	pushResult syncer.PushResult
	pullResult syncer.PullResult

	gate chan struct{} // when non-nil, Push blocks until the gate closes
}

func (f *fakeReconciler) Push(ctx context.Context) (syncer.PushResult, error) {
	f.pushes.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.pushResult, nil
}

func (f *fakeReconciler) Pull(ctx context.Context) (syncer.PullResult, error) {
	f.pulls.Add(1)
	return f.pullResult, nil
}

func newCoordinator(t *testing.T, rec syncer.Reconciler, online bool) *Coordinator {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(context.Background()))

	return New(store, rec, netmon.NewManual(online), &Config{
		SyncInterval: time.Hour, // keep the ticker out of the way
		Logger:       log.New(logWriter{t}, "[daemon] ", 0),
	})
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestSync_MutualExclusion(t *testing.T) {
	rec := &fakeReconciler{gate: make(chan struct{})}
	c := newCoordinator(t, rec, true)

	started := make(chan bool)
	go func() {
		started <- true
		c.Sync(context.Background())
	}()
	<-started

	// Wait until the first pass has claimed the busy flag.
	deadline := time.After(time.Second)
	for rec.pushes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first pass never started")
		case <-time.After(time.Millisecond):
		}
	}

	assert.False(t, c.Sync(context.Background()), "second pass ran while the first held the busy flag")
	assert.Equal(t, int32(1), rec.pushes.Load())

	close(rec.gate)
}

func TestSync_Offline(t *testing.T) {
	rec := &fakeReconciler{}
	c := newCoordinator(t, rec, false)

	assert.False(t, c.Sync(context.Background()))
	assert.Equal(t, int32(0), rec.pushes.Load(), "offline sync reached the reconciler")
}

func TestRunInitialSync_Once(t *testing.T) {
	rec := &fakeReconciler{}
	c := newCoordinator(t, rec, true)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RunInitialSync(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), rec.pulls.Load(), "initial pull ran more than once")
	assert.Equal(t, int32(1), rec.pushes.Load(), "initial push ran more than once")

	// Later calls stay no-ops.
	c.RunInitialSync(context.Background())
	assert.Equal(t, int32(1), rec.pulls.Load())
}

func TestRunInitialSync_OrderIsPullThenPush(t *testing.T) {
	var order []string
	var mu sync.Mutex
	rec := &orderedReconciler{record: func(op string) {
		mu.Lock()
		order = append(order, op)
		mu.Unlock()
	}}
	c := newCoordinator(t, rec, true)

	c.RunInitialSync(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"pull", "push"}, order)
}

type orderedReconciler struct {
	record func(string)
}

func (o *orderedReconciler) Push(ctx context.Context) (syncer.PushResult, error) {
	o.record("push")
	return syncer.PushResult{}, nil
}

func (o *orderedReconciler) Pull(ctx context.Context) (syncer.PullResult, error) {
	o.record("pull")
	return syncer.PullResult{}, nil
}

func TestSubscribe_NotifiedAfterPass(t *testing.T) {
	rec := &fakeReconciler{pushResult: syncer.PushResult{Pushed: 2}}
	c := newCoordinator(t, rec, true)

	var mu sync.Mutex
	var updates []PassUpdate
	unsubscribe := c.Subscribe(func(u PassUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	require.True(t, c.Sync(context.Background()))
	mu.Lock()
	require.Len(t, updates, 1)
	assert.Equal(t, 2, updates[0].Pushed)
	assert.Equal(t, 0, updates[0].Imported)
	mu.Unlock()

	unsubscribe()
	require.True(t, c.Sync(context.Background()))
	mu.Lock()
	assert.Len(t, updates, 1, "subscriber notified after unsubscribe")
	mu.Unlock()
}

func TestSubscribe_InitialPassCarriesImportCount(t *testing.T) {
	rec := &fakeReconciler{
		pushResult: syncer.PushResult{Pushed: 1},
		pullResult: syncer.PullResult{Imported: 3},
	}
	c := newCoordinator(t, rec, true)

	var mu sync.Mutex
	var updates []PassUpdate
	c.Subscribe(func(u PassUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	c.RunInitialSync(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 1)
	assert.Equal(t, 3, updates[0].Imported)
	assert.Equal(t, 1, updates[0].Pushed)
}

func TestRunInitialSync_WaitsForBusyPass(t *testing.T) {
	rec := &fakeReconciler{gate: make(chan struct{})}
	c := newCoordinator(t, rec, true)

	go c.Sync(context.Background())

	deadline := time.After(time.Second)
	for rec.pushes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("blocking pass never started")
		case <-time.After(time.Millisecond):
		}
	}

	done := make(chan struct{})
	go func() {
		c.RunInitialSync(context.Background())
		close(done)
	}()

	// The initial pass must wait for the in-flight pass, not give up.
	select {
	case <-done:
		t.Fatal("initial sync returned while another pass held the busy flag")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, int32(0), rec.pulls.Load())

	close(rec.gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("initial sync never ran after the busy pass finished")
	}
	assert.Equal(t, int32(1), rec.pulls.Load(), "the one pull was forfeited")
}

func TestAutoSync_SyncsOnStoreWrite(t *testing.T) {
	rec := &fakeReconciler{}
	c := newCoordinator(t, rec, true)

	c.StartAutoSync(context.Background())
	defer c.StopAutoSync()

	d, err := schema.ParseDate("2025-02-01")
	require.NoError(t, err)
	_, err = c.store.Create(context.Background(), db.CreateParams{
		CategoryID: 1,
		Amount:     "5.00",
		Date:       d,
	})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for rec.pushes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("store write never triggered a pass")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestAutoSync_SyncsOnReconnect(t *testing.T) {
	rec := &fakeReconciler{}
	store, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(context.Background()))

	net := netmon.NewManual(false)
	c := New(store, rec, net, &Config{
		SyncInterval: time.Hour,
		Logger:       log.New(logWriter{t}, "[daemon] ", 0),
	})

	c.StartAutoSync(context.Background())
	defer c.StopAutoSync()

	net.SetOnline(true)

	deadline := time.After(time.Second)
	for rec.pushes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("reconnect never triggered a pass")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStopAutoSync_DuringStoreWrites(t *testing.T) {
	rec := &fakeReconciler{}
	c := newCoordinator(t, rec, true)
	c.StartAutoSync(context.Background())

	d, err := schema.ParseDate("2025-02-01")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_, err := c.store.Create(context.Background(), db.CreateParams{
				CategoryID: 1,
				Amount:     "1.00",
				Date:       d,
			})
			if err != nil {
				return
			}
		}
	}()

	// Shut down while write triggers keep firing. A trigger racing the
	// shutdown must be dropped, never added to the wait group mid-Wait.
	time.Sleep(5 * time.Millisecond)
	c.StopAutoSync()

	close(done)
	wg.Wait()
}

func TestStopAutoSync_WithoutStart(t *testing.T) {
	c := newCoordinator(t, &fakeReconciler{}, true)
	c.StopAutoSync() // must not panic or block
}

func TestStartAutoSync_Twice(t *testing.T) {
	c := newCoordinator(t, &fakeReconciler{}, true)
	c.StartAutoSync(context.Background())
	c.StartAutoSync(context.Background())
	c.StopAutoSync()
}

package daemon

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/localledger/ledger/internal/ledger/db"
	"github.com/localledger/ledger/internal/ledger/netmon"
	syncer "github.com/localledger/ledger/internal/ledger/sync"
)

// Config holds coordinator settings.
type Config struct {
	// SyncInterval is the auto-sync ticker period.
	SyncInterval time.Duration

	// Logger receives coordinator and pass output. Defaults to stderr.
	Logger *log.Logger
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval: 5 * time.Second,
	}
}

// PassUpdate is delivered to subscribers after each completed pass.
type PassUpdate struct {
	// Status is the store's counters right after the pass.
	Status db.Status

	// Pushed counts records the pass sent (or relinked) remotely.
	Pushed int
	// Imported counts records the pass pulled in from other devices.
	// Zero for plain push passes.
	Imported int

	Duration time.Duration
}

// Coordinator serializes sync passes and drives auto-sync.
//
// All methods are safe for concurrent use.
type Coordinator struct {
	store  *db.Store
	rec    syncer.Reconciler
	net    netmon.Status
	config *Config
	logger *log.Logger

	mu          sync.Mutex
	cond        *sync.Cond // signalled when busy clears
	busy        bool
	initialDone bool

	autoCancel context.CancelFunc
	autoWG     sync.WaitGroup
	unsubNet   func()
	unsubStore func()

	subs    map[int]func(PassUpdate)
	nextSub int
}

// New creates a Coordinator. A nil config gets DefaultConfig.
func New(store *db.Store, rec syncer.Reconciler, net netmon.Status, config *Config) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultConfig().SyncInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	c := &Coordinator{
		store:  store,
		rec:    rec,
		net:    net,
		config: config,
		logger: logger,
		subs:   make(map[int]func(PassUpdate)),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// tryBegin claims the busy flag, reporting false if a pass is running.
func (c *Coordinator) tryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.busy = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// RunInitialSync runs the once-per-process pull-then-push pass.
//
// The once flag is consumed before any precondition check: a first pass
// attempted while offline still counts as the initial pass, and reconnecting
// later triggers a regular pass instead. Unlike Sync, it waits for an
// in-flight pass rather than dropping, so the process never forfeits its
// one pull.
func (c *Coordinator) RunInitialSync(ctx context.Context) {
	c.mu.Lock()
	if c.initialDone {
		c.mu.Unlock()
		return
	}
	c.initialDone = true
	for c.busy {
		c.cond.Wait()
	}
	c.busy = true
	c.mu.Unlock()
	defer c.end()

	start := time.Now()
	pull, err := c.rec.Pull(ctx)
	if err != nil {
		c.logger.Printf("WARNING: initial pull failed: %v", err)
	}
	push, err := c.rec.Push(ctx)
	if err != nil {
		c.logger.Printf("WARNING: initial push failed: %v", err)
	}
	if pull.Skipped && push.Skipped {
		c.logger.Printf("initial sync skipped (offline or unauthenticated)")
	}

	c.notify(ctx, push.Pushed+push.Recovered, pull.Imported, time.Since(start))
}

// Sync runs one push pass. It reports false when the pass was dropped
// because another pass was running or the device is offline.
func (c *Coordinator) Sync(ctx context.Context) bool {
	if !c.net.Online() {
		return false
	}
	if !c.tryBegin() {
		return false
	}
	defer c.end()

	start := time.Now()
	res, err := c.rec.Push(ctx)
	if err != nil {
		c.logger.Printf("WARNING: push failed: %v", err)
		return false
	}
	if res.Skipped {
		return false
	}

	c.notify(ctx, res.Pushed+res.Recovered, 0, time.Since(start))
	return true
}

// StartAutoSync starts the background triggers. Calling it again while
// running is a no-op.
func (c *Coordinator) StartAutoSync(ctx context.Context) {
	c.mu.Lock()
	if c.autoCancel != nil {
		c.mu.Unlock()
		return
	}
	autoCtx, cancel := context.WithCancel(ctx)
	c.autoCancel = cancel

	c.unsubNet = c.net.Subscribe(func() {
		c.logger.Printf("network reachable, syncing")
		c.spawn(autoCtx, func() { c.Sync(autoCtx) })
	})
	c.unsubStore = c.store.Subscribe(func(db.Event) {
		c.spawn(autoCtx, func() { c.Sync(autoCtx) })
	})

	c.autoWG.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.autoWG.Done()
		ticker := time.NewTicker(c.config.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-autoCtx.Done():
				return
			case <-ticker.C:
				if c.hasPendingWork(autoCtx) {
					c.Sync(autoCtx)
				}
			}
		}
	}()

	c.logger.Printf("auto-sync started (interval %s)", c.config.SyncInterval)
}

// spawn runs fn on a goroutine tracked by the auto-sync WaitGroup. Trigger
// callbacks that arrive after StopAutoSync began are dropped here, so an
// Add can never race the Wait.
func (c *Coordinator) spawn(ctx context.Context, fn func()) {
	c.mu.Lock()
	if c.autoCancel == nil || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.autoWG.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.autoWG.Done()
		fn()
	}()
}

// StopAutoSync stops the background triggers and waits for in-flight passes.
// Safe to call when auto-sync never started.
func (c *Coordinator) StopAutoSync() {
	c.mu.Lock()
	cancel := c.autoCancel
	c.autoCancel = nil
	unsubNet, unsubStore := c.unsubNet, c.unsubStore
	c.unsubNet, c.unsubStore = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	// Unsubscribe outside the mutex: an observer callback already running
	// takes the mutex in spawn, where it now finds autoCancel nil and bails.
	if unsubNet != nil {
		unsubNet()
	}
	if unsubStore != nil {
		unsubStore()
	}
	cancel()
	c.autoWG.Wait()
	c.logger.Printf("auto-sync stopped")
}

func (c *Coordinator) hasPendingWork(ctx context.Context) bool {
	st, err := c.store.Status(ctx)
	if err != nil {
		c.logger.Printf("WARNING: failed to read store status: %v", err)
		return false
	}
	if st.Unsynced > 0 {
		return true
	}
	pending, err := c.store.PendingRemoteDeletes(ctx)
	if err != nil {
		c.logger.Printf("WARNING: failed to read pending remote deletes: %v", err)
		return false
	}
	return len(pending) > 0
}

// Subscribe registers a callback fired after each completed pass. The
// returned function removes the subscription.
func (c *Coordinator) Subscribe(fn func(PassUpdate)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Status reports the local store counters.
func (c *Coordinator) Status(ctx context.Context) (db.Status, error) {
	return c.store.Status(ctx)
}

func (c *Coordinator) notify(ctx context.Context, pushed, imported int, duration time.Duration) {
	st, err := c.store.Status(ctx)
	if err != nil {
		c.logger.Printf("WARNING: failed to read store status: %v", err)
		return
	}

	c.mu.Lock()
	fns := make([]func(PassUpdate), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	update := PassUpdate{Status: st, Pushed: pushed, Imported: imported, Duration: duration}
	for _, fn := range fns {
		fn(update)
	}
}

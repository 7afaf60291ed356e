// Package engine orchestrates synchronization between the local store and
// the remote store.
//
// One cycle is a pull (remote -> local merge) followed by a push (drain
// the sync queue in FIFO order). Cycles are triggered by a periodic
// schedule, by the connectivity monitor's went-online edge, and by
// ForceSync after local writes. A cycle already in progress makes any
// concurrent trigger a no-op.
//
// Local mutations never block on the engine: a mutation's success is
// decided by its local transaction, and the engine catches up in the
// background. That is the offline-first contract.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stockpilot/internal/connectivity"
	"stockpilot/internal/remote"
	"stockpilot/internal/schema"
	"stockpilot/internal/store"
)

// Config holds configuration for the engine.
type Config struct {
	// UserID scopes every remote call.
	UserID string

	// Interval is the periodic sync schedule. Default 30s.
	Interval time.Duration

	// MaxRetries is the retry ceiling: a queue item failing this many
	// cycles with a retryable error is moved to the dead-letter table.
	// Default 3.
	MaxRetries int

	// Logger for engine activity.
	Logger *zap.Logger
}

// Status is a read-only projection for status indicators.
type Status struct {
	IsOnline     bool       `json:"is_online"`
	PendingItems int        `json:"pending_items"`
	DeadLetters  int        `json:"dead_letters"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
}

// CycleResult summarizes one finished sync cycle.
type CycleResult struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Pushed       int           `json:"pushed"`
	DeadLettered int           `json:"dead_lettered"`
	PullOK       bool          `json:"pull_ok"`
}

// Notifier receives sync lifecycle events. The dashboard implements it;
// a nil notifier is fine.
type Notifier interface {
	SyncCycleFinished(result CycleResult)
}

// Engine runs sync cycles. Construct with New, then Start.
type Engine struct {
	store    *store.DB
	remote   remote.API
	monitor  *connectivity.Monitor
	config   Config
	logger   *zap.Logger
	notifier Notifier

	sched      *cron.Cron
	inProgress atomic.Bool
	onChange   func(online bool)
}

// New creates an engine. The store must have its schema initialized.
// If the config logger is nil the global zap logger is used.
func New(db *store.DB, api remote.API, monitor *connectivity.Monitor, config Config) *Engine {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &Engine{
		store:   db,
		remote:  api,
		monitor: monitor,
		config:  config,
		logger:  logger,
	}
}

// SetNotifier registers a sync event consumer. Call before Start.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Start seeds an empty store from the remote if possible, subscribes to
// connectivity edges, and begins the periodic schedule.
func (e *Engine) Start() error {
	if err := e.InitializeOfflineData(context.Background()); err != nil {
		e.logger.Warn("initial seed failed, continuing with local data", zap.Error(err))
	}

	e.onChange = func(online bool) {
		if online {
			e.ForceSync()
		}
	}
	if err := e.monitor.Subscribe(e.onChange); err != nil {
		return fmt.Errorf("failed to subscribe to connectivity events: %w", err)
	}

	e.sched = cron.New()
	spec := fmt.Sprintf("@every %s", e.config.Interval)
	if _, err := e.sched.AddFunc(spec, e.ForceSync); err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}
	e.sched.Start()

	e.logger.Info("sync engine started", zap.Duration("interval", e.config.Interval))
	return nil
}

// Stop halts the schedule and connectivity subscription. An in-flight
// cycle is not cancelled; its network calls fail or finish on their own.
func (e *Engine) Stop() {
	if e.sched != nil {
		e.sched.Stop()
	}
	if e.onChange != nil {
		_ = e.monitor.Unsubscribe(e.onChange)
	}
	e.logger.Info("sync engine stopped")
}

// ForceSync runs a cycle in the background, fire-and-forget. The caller
// (a local write, the scheduler, a connectivity edge) never waits on it.
func (e *Engine) ForceSync() {
	go func() {
		if err := e.PerformSync(context.Background()); err != nil {
			e.logger.Warn("background sync failed", zap.Error(err))
		}
	}()
}

// PerformSync runs one pull+push cycle.
//
// A concurrent call while a cycle is running is a no-op, not an error and
// not queued. Offline, the cycle is skipped entirely. Returns the pull
// error if the pull failed; push failures are absorbed into the queue's
// retry state and only logged.
func (e *Engine) PerformSync(ctx context.Context) error {
	if !e.inProgress.CompareAndSwap(false, true) {
		return nil
	}
	defer e.inProgress.Store(false)

	if !e.monitor.IsOnline() {
		return nil
	}

	start := time.Now()
	pullErr := e.pull(ctx)
	if pullErr != nil {
		e.logger.Warn("pull failed, local data left untouched", zap.Error(pullErr))
	}

	pushed, deadLettered := e.push(ctx)

	if pullErr == nil {
		if err := e.store.SetLastSyncTime(ctx, time.Now()); err != nil {
			e.logger.Warn("failed to record sync time", zap.Error(err))
		}
	}

	result := CycleResult{
		StartedAt:    start,
		Duration:     time.Since(start),
		Pushed:       pushed,
		DeadLettered: deadLettered,
		PullOK:       pullErr == nil,
	}
	e.logger.Info("sync cycle finished",
		zap.Duration("duration", result.Duration),
		zap.Int("pushed", pushed),
		zap.Int("dead_lettered", deadLettered),
		zap.Bool("pull_ok", result.PullOK))
	if e.notifier != nil {
		e.notifier.SyncCycleFinished(result)
	}

	return pullErr
}

// InitializeOfflineData seeds an empty store with a pull so first-run
// users see their data before the first full cycle. A no-op when the
// store already has data or the remote is unreachable.
func (e *Engine) InitializeOfflineData(ctx context.Context) error {
	has, err := e.store.HasOfflineData(ctx)
	if err != nil {
		return err
	}
	if has || !e.monitor.IsOnline() {
		return nil
	}
	return e.pull(ctx)
}

// Status implements the read-only status projection. Never mutates state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, err := e.store.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}
	dead, err := e.store.DeadLetterCount(ctx)
	if err != nil {
		return Status{}, err
	}
	last, err := e.store.LastSyncTime(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		IsOnline:     e.monitor.IsOnline(),
		PendingItems: pending,
		DeadLetters:  dead,
		LastSync:     last,
	}, nil
}

// pull fetches the authoritative entity sets and merges them locally.
// Each collection is all-or-nothing: a fetch failure leaves that
// collection untouched, and doesn't stop the other one from merging.
func (e *Engine) pull(ctx context.Context) error {
	var firstErr error

	products, err := e.remote.FetchProducts(ctx, e.config.UserID)
	if err != nil {
		firstErr = err
	} else if err := e.store.MergeProducts(ctx, products); err != nil {
		firstErr = err
	}

	sales, err := e.remote.FetchSales(ctx, e.config.UserID)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if err := e.store.MergeSales(ctx, sales); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// push drains the sync queue in FIFO order.
//
// Success removes the item and flags the local row synced. A terminal
// error (remote rejection, undecodable payload) dead-letters the item and
// moves on. A retryable network error increments the retry count and,
// below the ceiling, STOPS the drain: processing order is a correctness
// guarantee (product-upsert before a dependent sale-upsert), so we accept
// a head-of-line stall bounded by the retry ceiling rather than push
// items out of order. At the ceiling the item is dead-lettered and the
// drain continues.
func (e *Engine) push(ctx context.Context) (pushed, deadLettered int) {
	items, err := e.store.PendingQueueItems(ctx)
	if err != nil {
		e.logger.Error("failed to read sync queue", zap.Error(err))
		return 0, 0
	}

	for _, item := range items {
		err := e.apply(ctx, item)
		if err == nil {
			// One transaction: flags the row synced and removes the
			// queue item together, so a crash here redelivers the item
			// instead of stranding an unsynced row with an empty queue.
			if err := e.store.CompleteQueueItem(ctx, item); err != nil {
				e.logger.Error("failed to complete pushed queue item",
					zap.Int64("item", item.ID), zap.Error(err))
				return pushed, deadLettered
			}
			pushed++
			continue
		}

		if !remote.IsNetwork(err) {
			// Terminal: rejection or a payload we can't even decode.
			e.logger.Warn("dead-lettering rejected queue item",
				zap.Int64("item", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.Error(err))
			if dlErr := e.store.MoveToDeadLetter(ctx, item, err.Error()); dlErr != nil {
				e.logger.Error("failed to dead-letter queue item",
					zap.Int64("item", item.ID), zap.Error(dlErr))
				return pushed, deadLettered
			}
			deadLettered++
			continue
		}

		retries, rErr := e.store.IncrementRetries(ctx, item.ID)
		if rErr != nil {
			e.logger.Error("failed to update retries",
				zap.Int64("item", item.ID), zap.Error(rErr))
			return pushed, deadLettered
		}
		if retries >= e.config.MaxRetries {
			item.Retries = retries
			reason := fmt.Sprintf("retry ceiling (%d) reached: %v", e.config.MaxRetries, err)
			if dlErr := e.store.MoveToDeadLetter(ctx, item, reason); dlErr != nil {
				e.logger.Error("failed to dead-letter queue item",
					zap.Int64("item", item.ID), zap.Error(dlErr))
				return pushed, deadLettered
			}
			e.logger.Warn("abandoned queue item after retry ceiling",
				zap.Int64("item", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.Int("retries", retries))
			deadLettered++
			continue
		}

		e.logger.Info("push attempt failed, will retry next cycle",
			zap.Int64("item", item.ID),
			zap.String("kind", string(item.Kind)),
			zap.Int("retries", retries),
			zap.Error(err))
		return pushed, deadLettered
	}

	return pushed, deadLettered
}

// apply dispatches one queue item to the matching remote operation.
// The switch is exhaustive over the item kinds; anything else is a
// terminal error.
func (e *Engine) apply(ctx context.Context, item *schema.QueueItem) error {
	switch item.Kind {
	case schema.KindProductUpsert:
		p, err := item.Product()
		if err != nil {
			return err
		}
		return e.remote.UpsertProduct(ctx, p)
	case schema.KindSaleUpsert:
		s, err := item.Sale()
		if err != nil {
			return err
		}
		return e.remote.UpsertSale(ctx, s)
	case schema.KindProductDelete:
		id, err := item.DeleteID()
		if err != nil {
			return err
		}
		return e.remote.DeleteProduct(ctx, id)
	case schema.KindSaleDelete:
		id, err := item.DeleteID()
		if err != nil {
			return err
		}
		return e.remote.DeleteSale(ctx, id)
	default:
		return fmt.Errorf("unknown queue item kind %q", item.Kind)
	}
}

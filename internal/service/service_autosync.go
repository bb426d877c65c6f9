package service

import (
	"context"
	"sync"
	"time"

	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/models"
)

type autoSync struct {
	request  func()
	entitled func(ctx context.Context) bool
	debounce time.Duration
	log      *logger.Logger

	changes chan models.ItemChange

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutoSync builds the debounced scheduler. request is called from the
// scheduler goroutine once the change stream has been quiet for the debounce
// period. entitled gates the whole feature: without the sync entitlement
// Start never arms anything.
func NewAutoSync(request func(), entitled func(ctx context.Context) bool, debounce time.Duration, log *logger.Logger) AutoSync {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &autoSync{
		request:  request,
		entitled: entitled,
		debounce: debounce,
		log:      log.Scope("autosync"),
		changes:  make(chan models.ItemChange, 64),
	}
}

// Start launches the scheduler goroutine. Any previously running scheduler
// is stopped first. Without the entitlement this is a no-op.
func (a *autoSync) Start(ctx context.Context) {
	if !a.entitled(ctx) {
		a.log.Debug().Msg("account not entitled, auto sync disabled")
		return
	}

	a.Stop()

	a.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		a.run(jobCtx)
	}()
}

// Stop cancels the scheduler goroutine and blocks until it has fully
// exited, its pending timer cleared. Safe to call when not running.
func (a *autoSync) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
}

// OnChange feeds one local mutation into the scheduler. The send never
// blocks the caller; under backpressure a change is dropped, which is safe
// because any later change re-arms the same timer.
func (a *autoSync) OnChange(change models.ItemChange) {
	select {
	case a.changes <- change:
	default:
	}
}

func (a *autoSync) run(ctx context.Context) {
	timer := time.NewTimer(a.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case change := <-a.changes:
			// Changes caused by syncing must not trigger another sync.
			if change.Remote || change.LocalOnly || change.Failed {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.debounce)
		case <-timer.C:
			a.log.Debug().Msg("change stream quiet, requesting sync")
			a.request()
		}
	}
}

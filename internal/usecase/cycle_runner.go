package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

const (
	defaultRefreshInterval  = 3 * time.Minute
	defaultDetectInterval   = time.Minute
	defaultDispatchInterval = 20 * time.Second
	defaultFetchPageSize    = 50
	defaultFinishedPages    = 2
)

type CycleConfig struct {
	RefreshInterval  time.Duration
	DetectInterval   time.Duration
	DispatchInterval time.Duration
	PageSize         int
	FinishedPages    int
}

type RefreshResult struct {
	FetchErrors int             `json:"fetch_errors"`
	Upsert      UpsertStats     `json:"upsert"`
	Detection   DetectionResult `json:"detection"`
	Cleanup     CleanupResult   `json:"cleanup"`
	Coverage    CoverageResult  `json:"coverage"`
	Scheduled   int             `json:"scheduled"`
}

type DetectResult struct {
	Upsert    UpsertStats     `json:"upsert"`
	Detection DetectionResult `json:"detection"`
	Scheduled int             `json:"scheduled"`
}

// CycleRunner drives the three periodic cycles. The coarse refresh and the
// fast detection both mutate overlapping match rows, so their write phases
// serialize through writeMu; a cycle that finds the lock held waits its turn
// rather than skipping the run. Dispatch only touches notification records
// and runs outside the lock.
type CycleRunner struct {
	store      *MatchStoreService
	window     *WindowService
	detector   *DetectorService
	reminders  *ReminderService
	dispatcher *DispatcherService
	provider   MatchDataProvider
	cfg        CycleConfig
	logger     *logging.Logger
	now        func() time.Time

	writeMu  sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCycleRunner(
	store *MatchStoreService,
	window *WindowService,
	detector *DetectorService,
	reminders *ReminderService,
	dispatcher *DispatcherService,
	provider MatchDataProvider,
	cfg CycleConfig,
	logger *logging.Logger,
) *CycleRunner {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.DetectInterval <= 0 {
		cfg.DetectInterval = defaultDetectInterval
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = defaultDispatchInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultFetchPageSize
	}
	if cfg.FinishedPages <= 0 {
		cfg.FinishedPages = defaultFinishedPages
	}

	return &CycleRunner{
		store:      store,
		window:     window,
		detector:   detector,
		reminders:  reminders,
		dispatcher: dispatcher,
		provider:   provider,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the three loops. Each is fire-and-forget with no control
// surface beyond Stop; failures inside a tick are contained to that tick.
func (r *CycleRunner) Start(ctx context.Context) {
	r.loop(ctx, "refresh", r.cfg.RefreshInterval, func(ctx context.Context) {
		if _, err := r.RunRefreshCycle(ctx); err != nil {
			r.logger.WarnContext(ctx, "refresh cycle failed", "error", err)
		}
	})
	r.loop(ctx, "detect", r.cfg.DetectInterval, func(ctx context.Context) {
		if _, err := r.RunDetectCycle(ctx); err != nil {
			r.logger.WarnContext(ctx, "detect cycle failed", "error", err)
		}
	})
	r.loop(ctx, "dispatch", r.cfg.DispatchInterval, func(ctx context.Context) {
		if _, err := r.RunDispatchCycle(ctx); err != nil {
			r.logger.WarnContext(ctx, "dispatch cycle failed", "error", err)
		}
	})
}

func (r *CycleRunner) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.logger.Info("cycle loop starting", "cycle", name, "interval", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick(ctx)
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("cycle loop stopped", "cycle", name)
				return
			case <-r.stopChan:
				r.logger.Info("cycle loop stopped", "cycle", name)
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

func (r *CycleRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

// RunRefreshCycle is the coarse cycle: fetch every category, rewrite the
// store, reconcile transitions against the full snapshot, trim and backfill
// the window, then derive reminders. One category failing upstream skips only
// that category.
func (r *CycleRunner) RunRefreshCycle(ctx context.Context) (RefreshResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CycleRunner.RunRefreshCycle")
	defer span.End()

	var result RefreshResult
	fresh := make([]ExternalMatch, 0, 4*r.cfg.PageSize)

	fetches := []struct {
		name string
		run  func(context.Context) ([]ExternalMatch, error)
	}{
		{"upcoming", func(ctx context.Context) ([]ExternalMatch, error) {
			return r.provider.FetchUpcoming(ctx, r.cfg.PageSize)
		}},
		{"running", r.provider.FetchRunning},
		{"finished", func(ctx context.Context) ([]ExternalMatch, error) {
			var out []ExternalMatch
			for page := 1; page <= r.cfg.FinishedPages; page++ {
				fetched, err := r.provider.FetchFinished(ctx, r.cfg.PageSize, page)
				if err != nil {
					return out, err
				}
				out = append(out, fetched...)
				if len(fetched) < r.cfg.PageSize {
					break
				}
			}
			return out, nil
		}},
		{"canceled", func(ctx context.Context) ([]ExternalMatch, error) {
			return r.provider.FetchCanceled(ctx, r.cfg.PageSize)
		}},
	}

	for _, fetch := range fetches {
		fetched, err := fetch.run(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "refresh fetch category failed", "category", fetch.name, "error", err)
			result.FetchErrors++
			continue
		}
		fresh = append(fresh, fetched...)
	}

	now := r.now()
	batch := make([]match.Match, 0, len(fresh))
	for _, item := range fresh {
		batch = append(batch, item.ToMatch(now))
	}

	r.writeMu.Lock()
	result.Upsert = r.store.UpsertMatches(ctx, batch)
	if detection, err := r.detector.ReconcileSnapshot(ctx, fresh); err != nil {
		r.logger.WarnContext(ctx, "snapshot reconciliation failed", "error", err)
	} else {
		result.Detection = detection
	}
	if cleanup, err := r.window.Cleanup(ctx); err != nil {
		r.logger.WarnContext(ctx, "window cleanup failed", "error", err)
	} else {
		result.Cleanup = cleanup
	}
	if coverage, err := r.window.EnsureCoverage(ctx, r.window.Window()); err != nil {
		r.logger.WarnContext(ctx, "coverage backfill failed", "error", err)
	} else {
		result.Coverage = coverage
	}
	r.writeMu.Unlock()

	scheduled, err := r.reminders.ScheduleForAllGuilds(ctx, eligibleForReminders(batch))
	if err != nil {
		r.logger.WarnContext(ctx, "reminder derivation failed", "error", err)
	}
	result.Scheduled = scheduled

	r.logger.InfoContext(ctx, "refresh cycle finished",
		"added", result.Upsert.Added,
		"updated", result.Upsert.Updated,
		"errors", result.Upsert.Errors,
		"fetch_errors", result.FetchErrors,
		"deleted", result.Cleanup.Deleted,
		"scheduled", result.Scheduled,
	)
	return result, nil
}

// RunDetectCycle is the fast cycle: fetch only recent data, detect
// transitions, derive reminders for anything new.
func (r *CycleRunner) RunDetectCycle(ctx context.Context) (DetectResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CycleRunner.RunDetectCycle")
	defer span.End()

	var result DetectResult
	recent := make([]ExternalMatch, 0, 2*r.cfg.PageSize)

	if fetched, err := r.provider.FetchRunning(ctx); err != nil {
		r.logger.WarnContext(ctx, "detect fetch running failed", "error", err)
	} else {
		recent = append(recent, fetched...)
	}
	if fetched, err := r.provider.FetchUpcoming(ctx, r.cfg.PageSize); err != nil {
		r.logger.WarnContext(ctx, "detect fetch upcoming failed", "error", err)
	} else {
		recent = append(recent, fetched...)
	}

	now := r.now()
	batch := make([]match.Match, 0, len(recent))
	for _, item := range recent {
		batch = append(batch, item.ToMatch(now))
	}

	r.writeMu.Lock()
	result.Upsert = r.store.UpsertMatches(ctx, batch)
	detection, err := r.detector.DetectTransitions(ctx)
	r.writeMu.Unlock()
	if err != nil {
		return result, err
	}
	result.Detection = detection

	scheduled, err := r.reminders.ScheduleForAllGuilds(ctx, eligibleForReminders(batch))
	if err != nil {
		r.logger.WarnContext(ctx, "reminder derivation failed", "error", err)
	}
	result.Scheduled = scheduled

	return result, nil
}

// RunDispatchCycle delivers due notifications. It deliberately does not take
// writeMu: it reads notification records and flips single sent flags, with
// no cross-record ordering dependency on the fetch cycles.
func (r *CycleRunner) RunDispatchCycle(ctx context.Context) (DispatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CycleRunner.RunDispatchCycle")
	defer span.End()

	return r.dispatcher.DispatchDue(ctx)
}

func eligibleForReminders(matches []match.Match) []match.Match {
	out := make([]match.Match, 0, len(matches))
	for _, m := range matches {
		if match.IsReminderEligible(m.Status) && m.BeginAt != nil {
			out = append(out, m)
		}
	}
	return out
}

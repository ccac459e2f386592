package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"blindtest/internal/config"
	"blindtest/internal/export"
	"blindtest/internal/exportrun"
	"blindtest/internal/history"
	"blindtest/internal/logging"
)

var (
	// ErrBusy is returned when an export is already running.
	ErrBusy = errors.New("an export is already running")
	// ErrNotFound is returned for unknown export ids.
	ErrNotFound = errors.New("export not found")
	// ErrFinished is returned when cancelling an export that already ended.
	ErrFinished = errors.New("export already finished")
)

// maxRetained bounds how many finished sessions stay addressable in memory.
const maxRetained = 32

type liveExport struct {
	job    *exportrun.Job
	cancel context.CancelFunc
}

// Manager owns the exports started through the HTTP bridge. At most one
// export runs at a time.
type Manager struct {
	cfg     *config.Config
	store   *history.Store
	logger  *slog.Logger
	runner  export.Runner
	prober  export.DurationProber
	baseCtx context.Context
	stop    context.CancelFunc

	// skipPreflight disables the output free-space check (tests).
	skipPreflight bool

	mu     sync.Mutex
	active string
	byID   map[string]*liveExport
	order  []string
	wg     sync.WaitGroup
}

// NewManager creates a manager. store may be nil, in which case runs are not
// recorded and only in-memory sessions are addressable.
func NewManager(cfg *config.Config, store *history.Store, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "api"),
		baseCtx: ctx,
		stop:    cancel,
		byID:    make(map[string]*liveExport),
	}
}

// Start prepares and launches an export in the background.
func (m *Manager) Start(ctx context.Context, req StartExportRequest) (*exportrun.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != "" {
		return nil, ErrBusy
	}

	opts := exportrun.Options{
		Config:      m.cfg,
		ProjectPath: req.Project,
		Output:      req.Output,
		Threads:     req.Threads,
		Logger:      m.logger,
		Runner:      m.runner,
		Prober:      m.prober,

		SkipPreflight: m.skipPreflight,
	}
	if m.store != nil {
		opts.Recorder = m.store
	}
	job, err := exportrun.Prepare(opts)
	if err != nil {
		return nil, err
	}
	id, err := job.Session.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	m.active = id
	m.byID[id] = &liveExport{job: job, cancel: cancel}
	m.order = append(m.order, id)
	m.evictLocked()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		state, runErr := job.Session.Run(runCtx)
		m.mu.Lock()
		if m.active == id {
			m.active = ""
		}
		m.mu.Unlock()
		if runErr != nil {
			m.logger.Info("export ended", logging.String("id", id), logging.String("status", string(state.Status)), logging.Error(runErr))
			return
		}
		m.logger.Info("export ended", logging.String("id", id), logging.String("status", string(state.Status)))
	}()
	return job, nil
}

// Lookup returns the in-memory export with id.
func (m *Manager) Lookup(id string) (*exportrun.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	live, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return live.job, true
}

// Active returns the id of the running export, empty when idle.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Cancel stops the running export with id.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	live, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if live.job.Session.Tracker().Snapshot().Status.Terminal() {
		return ErrFinished
	}
	live.cancel()
	return nil
}

// Get returns the run with id, preferring live state over history.
func (m *Manager) Get(ctx context.Context, id string) (ExportRun, error) {
	if job, ok := m.Lookup(id); ok {
		return FromState(job.Session.Tracker().Snapshot(), job.Request, job.Project), nil
	}
	if m.store == nil {
		return ExportRun{}, ErrNotFound
	}
	run, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return ExportRun{}, ErrNotFound
		}
		return ExportRun{}, err
	}
	return FromRun(run), nil
}

// List returns recent runs. Without a history store only in-memory runs are listed.
func (m *Manager) List(ctx context.Context, limit int) ([]ExportRun, error) {
	if m.store != nil {
		runs, err := m.store.List(ctx, limit)
		if err != nil {
			return nil, err
		}
		out := make([]ExportRun, 0, len(runs))
		for _, run := range runs {
			dto := FromRun(run)
			if job, ok := m.Lookup(run.ID); ok {
				dto = FromState(job.Session.Tracker().Snapshot(), job.Request, job.Project)
			}
			out = append(out, dto)
		}
		return out, nil
	}

	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()
	out := make([]ExportRun, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if job, ok := m.Lookup(ids[i]); ok {
			out = append(out, FromState(job.Session.Tracker().Snapshot(), job.Request, job.Project))
		}
	}
	return out, nil
}

// Close cancels any running export and waits for it to finish recording.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

func (m *Manager) evictLocked() {
	for len(m.order) > maxRetained {
		oldest := m.order[0]
		if oldest == m.active {
			return
		}
		m.order = m.order[1:]
		delete(m.byID, oldest)
	}
}

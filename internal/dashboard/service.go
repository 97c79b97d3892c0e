package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/regreview/internal/metrics"
	"github.com/aura-events/regreview/internal/models"
	"github.com/aura-events/regreview/internal/registrations"
)

// RecordLoader fetches and normalizes every registration.
type RecordLoader interface {
	Load(ctx context.Context) ([]models.Registration, error)
}

// Service owns the dashboard ViewState. Commands are serialized: at most one store call is in
// flight and no two commands interleave.
type Service struct {
	mu      sync.Mutex
	state   ViewState
	loader  RecordLoader
	store   registrations.Store
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a dashboard service in the pre-load empty state. m may be nil.
func NewService(loader RecordLoader, store registrations.Store, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		state:   NewViewState(),
		loader:  loader,
		store:   store,
		timeout: timeout,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Reload fetches all registrations and rebuilds the canonical set. On failure the state is
// cleared and a *FetchError returned.
func (s *Service) Reload(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.reloadLocked(ctx)
	return s.state.Render(), err
}

func (s *Service) reloadLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.loader.Load(ctx)
	if err != nil {
		s.state.Clear()
		s.metrics.Load(err, 0, 0)
		s.logger.Error("load registrations failed", zap.Error(err))
		return &FetchError{Err: err}
	}
	canonical := registrations.Deduplicate(records)
	s.state.Replace(canonical, s.now())
	s.metrics.Load(nil, len(records), len(canonical))
	s.logger.Info("dashboard reloaded",
		zap.Int("registrations", len(records)),
		zap.Int("canonical", len(canonical)),
	)
	return nil
}

// View renders the current state.
func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Render()
}

// Search sets the free-text query.
func (s *Service) Search(query string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetQuery(query)
	return s.state.Render()
}

// SelectFilter sets the status filter.
func (s *Service) SelectFilter(filter string) (View, error) {
	f, err := ParseFilter(filter)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetFilter(f)
	return s.state.Render(), nil
}

// SelectPage moves to page n of the filtered records.
func (s *Service) SelectPage(n int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.SetPage(n); err != nil {
		return View{}, err
	}
	return s.state.Render(), nil
}

// Get returns the primary record with the given id, including its history.
func (s *Service) Get(id string) (models.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Find(id)
	if !ok {
		return models.CanonicalRecord{}, ErrNotFound
	}
	return rec, nil
}

// CommitStatus persists a new status for a primary record and then updates it in memory.
// reason is kept only when status is rejected and non-empty.
func (s *Service) CommitStatus(ctx context.Context, id, status, reason string) (models.CanonicalRecord, error) {
	st := models.Status(status)
	if !st.Valid() {
		return models.CanonicalRecord{}, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Find(id); !ok {
		return models.CanonicalRecord{}, ErrNotFound
	}

	var reasonPtr *string
	if st == models.StatusRejected && reason != "" {
		reasonPtr = &reason
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.UpdateStatus(ctx, id, st, reasonPtr, s.now()); err != nil {
		s.metrics.Mutation("status", err)
		s.logger.Error("update status failed", zap.String("registration_id", id), zap.Error(err))
		return models.CanonicalRecord{}, &PersistenceError{Op: "update", ID: id, Err: err}
	}
	s.metrics.Mutation("status", nil)

	rec, _ := s.state.ApplyStatus(id, st, reasonPtr)
	s.logger.Info("status updated", zap.String("registration_id", id), zap.String("status", status))
	return rec, nil
}

// Delete removes a registration from the store and reloads. Removing a primary can promote a
// history entry, so the canonical set is rebuilt rather than patched.
func (s *Service) Delete(ctx context.Context, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.store.Delete(delCtx, id)
	cancel()
	s.metrics.Mutation("delete", err)
	if err != nil {
		s.logger.Error("delete registration failed", zap.String("registration_id", id), zap.Error(err))
		return s.state.Render(), &PersistenceError{Op: "delete", ID: id, Err: err}
	}
	s.logger.Info("registration deleted", zap.String("registration_id", id))

	err = s.reloadLocked(ctx)
	return s.state.Render(), err
}

// Snapshot returns a copy of the current records, query and filter.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot(s.now())
}

// Package humanloop implements the suspension/resumption protocol for
// drafts that trip a safety trigger: an in-memory notification layer
// (one channel per pending request, closed exactly once on resolution —
// no polling) backed by a durable ent.ValidationRequest record for audit
// and the external queue/statistics views.
package humanloop

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/medqa-orchestrator/ent"
	"github.com/codeready-toolchain/medqa-orchestrator/ent/validationrequest"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// entry is the process-local tracking record for one pending or recently
// resolved ValidationRequest. done is closed exactly once, when the
// request transitions to a terminal status; every AwaitDecision caller
// selects on it instead of polling.
type entry struct {
	mu        sync.Mutex
	request   models.ValidationRequest
	done      chan struct{}
	closeOnce sync.Once
}

func (e *entry) snapshot() models.ValidationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.request
}

// stats accumulates resolution counters since process start.
type stats struct {
	mu              sync.Mutex
	approved        int
	rejected        int
	expired         int
	totalWaitMS     int64
	resolutionCount int
}

func (s *stats) record(status models.ValidationStatus, waitMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch status {
	case models.ValidationApproved, models.ValidationModified:
		s.approved++
	case models.ValidationRejected:
		s.rejected++
	case models.ValidationExpired:
		s.expired++
	}
	s.totalWaitMS += waitMS
	s.resolutionCount++
}

// Statistics is the snapshot returned by Manager.Statistics.
type Statistics struct {
	Pending   int   `json:"pending"`
	Approved  int   `json:"approved"`
	Rejected  int   `json:"rejected"`
	Expired   int   `json:"expired"`
	AvgWaitMS int64 `json:"avg_wait_ms"`
}

// Manager is the process-wide HumanLoopManager.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*entry
	client  *ent.Client
	timeout time.Duration
	stats   stats
	now     func() time.Time
}

// NewManager builds a Manager. defaultTimeout is the validation window of
// every request the Manager creates (ExpiresAt = CreatedAt + timeout;
// spec.md §4.6's 3600s default); there is no per-request override.
func NewManager(client *ent.Client, defaultTimeout time.Duration) *Manager {
	return &Manager{
		pending: make(map[string]*entry),
		client:  client,
		timeout: defaultTimeout,
		now:     time.Now,
	}
}

// RequestInput carries the fields needed to open a new ValidationRequest.
type RequestInput struct {
	QueryFingerprint string
	TriggerKind      models.TriggerKind
	DraftResponse    string
	DetectedLanguage models.Language
	TargetLanguage   models.Language
}

// Create opens a new PENDING ValidationRequest, persists it, and
// registers it for notification. The Orchestrator calls this exactly
// once per trigger match when enable_human_loop is true.
func (m *Manager) Create(ctx context.Context, in RequestInput) (models.ValidationRequest, error) {
	id := uuid.New().String()
	createdAt := m.now()
	expiresAt := createdAt.Add(m.timeout)

	req := models.ValidationRequest{
		ID:               id,
		QueryFingerprint: in.QueryFingerprint,
		TriggerKind:      in.TriggerKind,
		Priority:         in.TriggerKind.Priority(),
		DraftResponse:    in.DraftResponse,
		DetectedLanguage: in.DetectedLanguage,
		TargetLanguage:   in.TargetLanguage,
		CreatedAt:        createdAt,
		ExpiresAt:        expiresAt,
		Status:           models.ValidationPending,
	}

	builder := m.client.ValidationRequest.Create().
		SetID(id).
		SetQueryFingerprint(in.QueryFingerprint).
		SetTriggerKind(validationrequest.TriggerKind(in.TriggerKind)).
		SetPriority(req.Priority).
		SetDraftResponse(in.DraftResponse).
		SetDetectedLanguage(string(in.DetectedLanguage)).
		SetCreatedAt(createdAt).
		SetExpiresAt(expiresAt).
		SetStatus(validationrequest.StatusPENDING)
	if in.TargetLanguage != "" {
		builder = builder.SetTargetLanguage(string(in.TargetLanguage))
	}
	if _, err := builder.Save(ctx); err != nil {
		return models.ValidationRequest{}, fmt.Errorf("humanloop: persist validation request: %w", err)
	}

	e := &entry{request: req, done: make(chan struct{})}
	m.mu.Lock()
	m.pending[id] = e
	m.mu.Unlock()

	return req, nil
}

// SubmitDecision resolves a PENDING request. Re-submitting the same
// terminal decision for an already-resolved request is idempotent;
// submitting a different one returns ErrConflict (spec.md §4.6).
func (m *Manager) SubmitDecision(ctx context.Context, id string, decision models.ValidationStatus, modifiedText, notes string) (models.ValidationRequest, error) {
	m.mu.Lock()
	e, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return models.ValidationRequest{}, ErrNotFound
	}

	e.mu.Lock()
	if e.request.Status.IsTerminal() {
		current := e.request
		e.mu.Unlock()
		if current.Status == decision {
			return current, nil
		}
		return models.ValidationRequest{}, ErrConflict
	}

	resolvedAt := m.now()
	e.request.Status = decision
	e.request.Decision = decision
	e.request.ModifiedText = modifiedText
	e.request.ReviewerNotes = notes
	waitMS := resolvedAt.Sub(e.request.CreatedAt).Milliseconds()
	result := e.request
	e.mu.Unlock()

	update := m.client.ValidationRequest.UpdateOneID(id).
		SetStatus(validationrequest.Status(decision)).
		SetResolvedAt(resolvedAt)
	if modifiedText != "" {
		update = update.SetModifiedText(modifiedText)
	}
	if notes != "" {
		update = update.SetReviewerNotes(notes)
	}
	if _, err := update.Save(ctx); err != nil {
		return models.ValidationRequest{}, fmt.Errorf("humanloop: persist decision: %w", err)
	}

	e.closeOnce.Do(func() { close(e.done) })
	m.stats.record(decision, waitMS)
	return result, nil
}

// Get returns a snapshot of request id, whatever its current status. A
// PENDING request past its ExpiresAt is transitioned to EXPIRED before
// the snapshot is returned, so a caller never observes a stale PENDING
// that the periodic sweep simply hasn't reached yet.
func (m *Manager) Get(ctx context.Context, id string) (models.ValidationRequest, bool) {
	m.mu.Lock()
	e, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return models.ValidationRequest{}, false
	}
	return m.expireIfDue(ctx, e), true
}

// AwaitDecision blocks until id resolves, ctx is cancelled, or timeout
// elapses — whichever comes first — without polling. A caller abandoning
// its own wait (ctx cancellation) does not affect other waiters or the
// underlying request, which persists until decision or expiry (spec.md
// §5).
func (m *Manager) AwaitDecision(ctx context.Context, id string, timeout time.Duration) (models.ValidationStatus, error) {
	m.mu.Lock()
	e, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	if snap := m.expireIfDue(ctx, e); snap.Status.IsTerminal() {
		return snap.Status, nil
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-e.done:
		snap := e.snapshot()
		if snap.Status == models.ValidationExpired {
			return snap.Status, ErrExpired
		}
		return snap.Status, nil
	case <-timeoutCh:
		return "", ErrExpired
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// GetPending returns a snapshot of every PENDING request ordered by
// (priority desc, created_at asc). Each entry is lazily expired before
// being considered, so a request past its ExpiresAt never shows up here
// just because the periodic sweep hasn't run yet. The underlying set may
// still change between calls (spec.md §5).
func (m *Manager) GetPending(ctx context.Context) []models.ValidationRequest {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.pending))
	for _, e := range m.pending {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	out := make([]models.ValidationRequest, 0, len(entries))
	for _, e := range entries {
		snap := m.expireIfDue(ctx, e)
		if snap.Status == models.ValidationPending {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Statistics reports resolution counters since process start.
func (m *Manager) Statistics(ctx context.Context) Statistics {
	pending := len(m.GetPending(ctx))

	m.stats.mu.Lock()
	defer m.stats.mu.Unlock()
	var avg int64
	if m.stats.resolutionCount > 0 {
		avg = m.stats.totalWaitMS / int64(m.stats.resolutionCount)
	}
	return Statistics{
		Pending:   pending,
		Approved:  m.stats.approved,
		Rejected:  m.stats.rejected,
		Expired:   m.stats.expired,
		AvgWaitMS: avg,
	}
}

// RunExpirySweep periodically expires PENDING requests whose ExpiresAt
// has passed. Grounded on the orphan-detection sweep pattern: a ticker
// loop, idempotent on each pass, safe to run from every process replica.
func (m *Manager) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expirePending(ctx)
		}
	}
}

func (m *Manager) expirePending(ctx context.Context) {
	m.mu.Lock()
	candidates := make([]*entry, 0, len(m.pending))
	for _, e := range m.pending {
		candidates = append(candidates, e)
	}
	m.mu.Unlock()

	for _, e := range candidates {
		m.expireIfDue(ctx, e)
	}
}

// expireIfDue transitions e to EXPIRED, persisting the change, if it is
// still PENDING past its ExpiresAt; otherwise it is a no-op. Both the
// periodic RunExpirySweep and every read path (Get, GetPending,
// Statistics) call this, so a PENDING request past its deadline is never
// observed as still-pending regardless of which path reaches it first.
func (m *Manager) expireIfDue(ctx context.Context, e *entry) models.ValidationRequest {
	now := m.now()

	e.mu.Lock()
	if e.request.Status.IsTerminal() || now.Before(e.request.ExpiresAt) {
		snap := e.request
		e.mu.Unlock()
		return snap
	}
	id := e.request.ID
	waitMS := now.Sub(e.request.CreatedAt).Milliseconds()
	e.mu.Unlock()

	if _, err := m.client.ValidationRequest.UpdateOneID(id).
		SetStatus(validationrequest.StatusEXPIRED).
		SetResolvedAt(now).
		Save(ctx); err != nil {
		return e.snapshot()
	}

	e.mu.Lock()
	if !e.request.Status.IsTerminal() {
		e.request.Status = models.ValidationExpired
		e.request.Decision = models.ValidationExpired
	}
	snap := e.request
	e.mu.Unlock()

	e.closeOnce.Do(func() { close(e.done) })
	m.stats.record(models.ValidationExpired, waitMS)
	return snap
}

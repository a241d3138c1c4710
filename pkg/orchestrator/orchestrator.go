// Package orchestrator implements the query-lifecycle state machine:
// cache check, language/safety classification, retrieval, the bounded
// Generator/Verifier/Reformer consensus loop, the human-in-the-loop
// suspension branch, and optional translation of the final answer.
// Grounded on the teacher's SubAgentRunner dispatch/result/cancel/wait-all
// shape, generalized from parallel sub-agent fan-out to a sequential
// role pipeline with a bounded reform loop.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/agentrunner"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/audit"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/cache"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/humanloop"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/lang"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/retrieval"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/safety"
)

// Config holds the tunable constants from spec.md §4.7 and §6.4.
type Config struct {
	MaxIterations            int
	VerifierApproveThreshold float64
	VerifierRejectThreshold  float64
	WorkflowTimeout          time.Duration
	EnableHumanLoopDefault   bool
}

// Orchestrator wires every collaborator interface together and advances
// one workflow at a time, sequentially, per call to ProcessQuery. Many
// workflows run concurrently in the process; the only per-workflow state
// the type holds is the mutex-guarded validation_id -> resolved response
// map behind FetchValidationResult.
type Orchestrator struct {
	cfg        Config
	cache      *cache.ResponseCache
	detector   *lang.Detector
	classifier *safety.Classifier
	retrieval  retrieval.Client
	generator  *agentrunner.GeneratorRunner
	verifier   *agentrunner.VerifierRunner
	reformer   *agentrunner.ReformerRunner
	translator *agentrunner.TranslatorRunner
	humanLoop  *humanloop.Manager
	audit      *audit.Sink

	resultsMu sync.Mutex
	results   map[string]models.FinalResponse // validation_id -> resolved envelope
}

// New builds an Orchestrator from its collaborators.
func New(
	cfg Config,
	respCache *cache.ResponseCache,
	detector *lang.Detector,
	classifier *safety.Classifier,
	retrievalClient retrieval.Client,
	generator *agentrunner.GeneratorRunner,
	verifier *agentrunner.VerifierRunner,
	reformer *agentrunner.ReformerRunner,
	translator *agentrunner.TranslatorRunner,
	humanLoopMgr *humanloop.Manager,
	auditSink *audit.Sink,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		cache:      respCache,
		detector:   detector,
		classifier: classifier,
		retrieval:  retrievalClient,
		generator:  generator,
		verifier:   verifier,
		reformer:   reformer,
		translator: translator,
		humanLoop:  humanLoopMgr,
		audit:      auditSink,
		results:    make(map[string]models.FinalResponse),
	}
}

// ProcessQuery is the core's single entry point (spec.md §6.1).
func (o *Orchestrator) ProcessQuery(ctx context.Context, q models.Query) (models.FinalResponse, error) {
	if strings.TrimSpace(q.Text) == "" {
		return models.FinalResponse{}, &Error{Kind: ErrInputInvalid, Msg: "query text must not be empty"}
	}
	if q.HasTargetLanguage() && !q.TargetLanguage.IsValid() {
		return models.FinalResponse{}, &Error{Kind: ErrInputInvalid, Msg: "unsupported target_language"}
	}
	if q.RequestID == "" {
		q.RequestID = uuid.New().String()
	}

	fp := models.Fingerprint(q)

	if resp, ok := o.cache.Lookup(fp); ok {
		o.auditSafe(ctx, audit.EventCacheHit, q.RequestID, fp, nil)
		return resp, nil
	}

	o.auditSafe(ctx, audit.EventWorkflowStart, q.RequestID, fp, map[string]any{"query": q.Text})

	resp, err := o.cache.Compute(ctx, fp, func(runCtx context.Context) (models.FinalResponse, error) {
		// Compute detaches runCtx from the caller's cancellation (and its
		// deadline), so the workflow timeout is applied here.
		if o.cfg.WorkflowTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, o.cfg.WorkflowTimeout)
			defer cancel()
		}
		return o.runWorkflow(runCtx, q, fp)
	})

	o.auditSafe(ctx, audit.EventWorkflowEnd, q.RequestID, fp, map[string]any{"consensus": string(resp.Consensus)})
	return resp, err
}

// SubmitHumanDecision resolves a pending ValidationRequest (spec.md §6.1).
func (o *Orchestrator) SubmitHumanDecision(ctx context.Context, validationID string, decision models.ValidationStatus, modifiedText, notes string) (models.ValidationRequest, error) {
	return o.humanLoop.SubmitDecision(ctx, validationID, decision, modifiedText, notes)
}

// FetchValidationResult returns the finalized FinalResponse for a
// validation_id once its decision has resolved and been applied. ok is
// false while the request is still PENDING.
func (o *Orchestrator) FetchValidationResult(validationID string) (models.FinalResponse, bool) {
	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	resp, ok := o.results[validationID]
	return resp, ok
}

func (o *Orchestrator) storeValidationResult(validationID string, resp models.FinalResponse) {
	o.resultsMu.Lock()
	o.results[validationID] = resp
	o.resultsMu.Unlock()
}

// GetValidationQueue returns the pending queue snapshot (spec.md §6.1).
func (o *Orchestrator) GetValidationQueue(ctx context.Context) []models.ValidationRequest {
	return o.humanLoop.GetPending(ctx)
}

// GetValidationStatistics returns the human-loop statistics (spec.md §6.1).
func (o *Orchestrator) GetValidationStatistics(ctx context.Context) humanloop.Statistics {
	return o.humanLoop.Statistics(ctx)
}

// EnableHumanLoopDefault returns the configured default for requests that
// omit enable_human_loop (spec.md §6.4's ENABLE_HUMAN_LOOP_DEFAULT).
func (o *Orchestrator) EnableHumanLoopDefault() bool {
	return o.cfg.EnableHumanLoopDefault
}

// ComponentHealth reports per-component status for the /health endpoint
// (spec.md §6.1's {orchestrator, cache, human_loop, llm, retrieval}).
type ComponentHealth struct {
	Orchestrator string `json:"orchestrator"`
	Cache        string `json:"cache"`
	HumanLoop    string `json:"human_loop"`
	LLM          string `json:"llm"`
	Retrieval    string `json:"retrieval"`
}

// Health reports a best-effort health snapshot; the orchestrator itself
// has no failure mode short of a panic, so it always reports "healthy".
func (o *Orchestrator) Health() ComponentHealth {
	return ComponentHealth{
		Orchestrator: "healthy",
		Cache:        "healthy",
		HumanLoop:    "healthy",
		LLM:          "healthy",
		Retrieval:    "healthy",
	}
}

// RunBackgroundSweeps starts the cache TTL eviction loop and the
// human-loop expiry sweep. It blocks until ctx is cancelled; callers run
// it in its own goroutine for the lifetime of the process.
func (o *Orchestrator) RunBackgroundSweeps(ctx context.Context) {
	go o.cache.RunSweep(ctx, time.Minute)
	o.humanLoop.RunExpirySweep(ctx, time.Minute)
}

// auditSafe appends an audit event and only logs a failure — the audit
// trail is observability, not a correctness dependency for the caller's
// workflow (spec.md §6.2).
func (o *Orchestrator) auditSafe(ctx context.Context, eventType audit.EventType, requestID, fingerprint string, payload map[string]any) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Append(ctx, eventType, requestID, fingerprint, payload); err != nil {
		slog.Warn("audit append failed", "event_type", eventType, "request_id", requestID, "error", err)
	}
}

package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/medqa-orchestrator/pkg/agentrunner"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/audit"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/humanloop"
	"github.com/codeready-toolchain/medqa-orchestrator/pkg/models"
)

// runWorkflow advances a single workflow from CLASSIFY through either
// the human-loop suspension branch or the consensus loop, per spec.md
// §4.7's state diagram. Safety classification runs before retrieval so
// audit trails don't expose an unverified draft any longer than
// necessary; retrieval and generation still proceed on a trigger match
// because the draft itself is what the human reviewer evaluates.
func (o *Orchestrator) runWorkflow(ctx context.Context, q models.Query, fp string) (models.FinalResponse, error) {
	startedAt := time.Now()

	detection := o.detector.Detect(q.Text)
	detectedLang := detection.Language
	targetLang := detectedLang
	if q.HasTargetLanguage() {
		targetLang = q.TargetLanguage
	}

	trigger, triggered := o.classifier.Classify(q.Text)
	triggerKind := trigger.Kind

	retrievedContext, retrErr := o.retrieval.Retrieve(ctx, q.Text)
	if retrErr != nil {
		// RETRIEVAL_UNAVAILABLE downgrades to the empty-context path;
		// the Generator's uncertainty-acknowledgement obligation covers it.
		retrievedContext = models.Context{}
	}

	genOut, genErr := o.generator.Run(ctx, agentrunner.GeneratorInput{
		Query:            q.Text,
		Context:          retrievedContext,
		DetectedLanguage: detectedLang,
	})
	if genErr != nil {
		o.auditSafe(ctx, audit.EventAgentError, q.RequestID, fp, map[string]any{"role": "generator", "error": genErr.Error()})
		return o.failedResponse(detectedLang, targetLang, retrievedContext.Sources, 0, startedAt, genErr), nil
	}

	if triggered && q.EnableHumanLoop {
		vreq, err := o.humanLoop.Create(ctx, humanloop.RequestInput{
			QueryFingerprint: fp,
			TriggerKind:      triggerKind,
			DraftResponse:    genOut.Text,
			DetectedLanguage: detectedLang,
			TargetLanguage:   targetLang,
		})
		if err != nil {
			return o.failedResponse(detectedLang, targetLang, retrievedContext.Sources, 1, startedAt, err), nil
		}
		o.auditSafe(ctx, audit.EventValidationCreate, q.RequestID, fp, map[string]any{"validation_id": vreq.ID, "trigger": string(triggerKind)})

		go o.finalizeAfterHumanDecision(vreq, q, fp, retrievedContext, genOut, startedAt)

		return models.FinalResponse{
			Success:          true,
			DetectedLanguage: detectedLang,
			TargetLanguage:   targetLang,
			Consensus:        models.ConsensusPendingValidation,
			IterationsUsed:   1,
			ProcessingTimeMS: time.Since(startedAt).Milliseconds(),
			ValidationID:     vreq.ID,
		}, nil
	}

	return o.runConsensusLoop(ctx, q, fp, detectedLang, targetLang, retrievedContext, genOut, startedAt)
}

// runConsensusLoop implements the bounded Verifier/Reformer loop.
func (o *Orchestrator) runConsensusLoop(
	ctx context.Context,
	q models.Query,
	fp string,
	detectedLang, targetLang models.Language,
	ctxData models.Context,
	genOut models.AgentOutput,
	startedAt time.Time,
) (models.FinalResponse, error) {
	currentDraft := genOut.Text
	reformed := false
	reformedYesSeen := false
	lastVote := models.VoteUnknown
	verifierAnalysis := ""

	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		verOut, verErr := o.verifier.Run(ctx, agentrunner.VerifierInput{
			Query:         q.Text,
			Context:       ctxData,
			GeneratorText: currentDraft,
		})

		if verErr != nil {
			o.auditSafe(ctx, audit.EventAgentError, q.RequestID, fp, map[string]any{"role": "verifier", "error": verErr.Error()})
			lastVote = models.VoteUnknown
			if iter == o.cfg.MaxIterations {
				return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, o.terminalConsensus(lastVote, reformedYesSeen), iter, startedAt, false), nil
			}
			reformOut, reformErr := o.reformer.Run(ctx, agentrunner.ReformerInput{
				Query: q.Text, Context: ctxData, GeneratorText: currentDraft, VerifierAnalysis: verifierAnalysis, DetectedLanguage: detectedLang,
			})
			if reformErr != nil {
				o.auditSafe(ctx, audit.EventAgentError, q.RequestID, fp, map[string]any{"role": "reformer", "error": reformErr.Error()})
				return o.failedResponse(detectedLang, targetLang, ctxData.Sources, iter, startedAt, reformErr), nil
			}
			currentDraft = reformOut.Text
			reformed = true
			continue
		}

		vote := verOut.Vote
		confidence := verOut.Confidence
		verifierAnalysis = verOut.Analysis
		lastVote = vote

		switch {
		case vote == models.VoteYES && confidence >= o.cfg.VerifierApproveThreshold:
			consensus := models.ConsensusApproved
			if reformed {
				consensus = models.ConsensusReformedApproved
			}
			return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, consensus, iter, startedAt, false), nil

		case vote == models.VoteNO || confidence < o.cfg.VerifierRejectThreshold:
			if reformed && vote == models.VoteYES {
				reformedYesSeen = true
			}
			if iter == o.cfg.MaxIterations {
				consensus := o.terminalConsensus(lastVote, reformedYesSeen)
				return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, consensus, iter, startedAt, consensus == models.ConsensusFallback), nil
			}
			reformOut, reformErr := o.reformer.Run(ctx, agentrunner.ReformerInput{
				Query: q.Text, Context: ctxData, GeneratorText: currentDraft, VerifierAnalysis: verifierAnalysis, DetectedLanguage: detectedLang,
			})
			if reformErr != nil {
				o.auditSafe(ctx, audit.EventAgentError, q.RequestID, fp, map[string]any{"role": "reformer", "error": reformErr.Error()})
				// Reformer failure: keep the current draft as the best-known
				// answer and either finalize now (last iteration) or proceed.
				if iter == o.cfg.MaxIterations {
					consensus := o.terminalConsensus(lastVote, reformedYesSeen)
					return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, consensus, iter, startedAt, consensus == models.ConsensusFallback), nil
				}
				continue
			}
			currentDraft = reformOut.Text
			reformed = true
			continue

		default: // UNKNOWN vote or middle confidence band
			return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, models.ConsensusApproved, iter, startedAt, true), nil
		}
	}

	consensus := o.terminalConsensus(lastVote, reformedYesSeen)
	return o.finalize(ctx, q, fp, detectedLang, targetLang, currentDraft, ctxData.Sources, consensus, o.cfg.MaxIterations, startedAt, consensus == models.ConsensusFallback), nil
}

// terminalConsensus implements spec.md §4.7's MAX_ITERATIONS termination
// rule: APPROVED if the last vote was YES, else REFORMED_APPROVED if any
// reform pass produced a YES, else FALLBACK.
func (o *Orchestrator) terminalConsensus(lastVote models.Vote, reformedYesSeen bool) models.Consensus {
	switch {
	case lastVote == models.VoteYES:
		return models.ConsensusApproved
	case reformedYesSeen:
		return models.ConsensusReformedApproved
	default:
		return models.ConsensusFallback
	}
}

// finalize builds the terminal FinalResponse for a successful or
// fallback consensus, translating the answer when the caller requested
// a different language than the one the pipeline produced.
func (o *Orchestrator) finalize(
	ctx context.Context,
	q models.Query,
	fp string,
	detectedLang, targetLang models.Language,
	answer string,
	sources []models.Source,
	consensus models.Consensus,
	iterationsUsed int,
	startedAt time.Time,
	flaggedUncertain bool,
) models.FinalResponse {
	resp := models.FinalResponse{
		Success:          consensus != models.ConsensusFailed,
		Answer:           answer,
		Sources:          sources,
		DetectedLanguage: detectedLang,
		TargetLanguage:   targetLang,
		Consensus:        consensus,
		IterationsUsed:   iterationsUsed,
		FlaggedUncertain: flaggedUncertain,
	}

	if consensus == models.ConsensusFallback {
		resp.Answer = fallbackMessage(detectedLang)
	}

	if (consensus == models.ConsensusApproved || consensus == models.ConsensusReformedApproved) && targetLang != detectedLang {
		transOut, err := o.translator.Run(ctx, agentrunner.TranslatorInput{
			Text:           answer,
			SourceLanguage: detectedLang,
			TargetLanguage: targetLang,
		})
		if err != nil {
			o.auditSafe(ctx, audit.EventAgentError, q.RequestID, fp, map[string]any{"role": "translator", "error": err.Error()})
			resp.Untranslated = true
		} else {
			resp.Answer = transOut.Text
		}
	}

	resp.ProcessingTimeMS = time.Since(startedAt).Milliseconds()
	return resp
}

// failedResponse builds a terminal FAILED envelope for an uncaught
// transport error after retries are exhausted.
func (o *Orchestrator) failedResponse(detectedLang, targetLang models.Language, sources []models.Source, iterationsUsed int, startedAt time.Time, err error) models.FinalResponse {
	if iterationsUsed < 1 {
		iterationsUsed = 1
	}
	return models.FinalResponse{
		Success:          false,
		Sources:          sources,
		DetectedLanguage: detectedLang,
		TargetLanguage:   targetLang,
		Consensus:        models.ConsensusFailed,
		IterationsUsed:   iterationsUsed,
		ProcessingTimeMS: time.Since(startedAt).Milliseconds(),
		Error:            err.Error(),
	}
}

// finalizeAfterHumanDecision is spawned once per PENDING_VALIDATION
// workflow. It detaches from the caller's context (the caller has
// already received its PENDING_VALIDATION envelope and may have moved
// on) and waits for submit_decision or expiry without polling.
func (o *Orchestrator) finalizeAfterHumanDecision(
	vreq models.ValidationRequest,
	q models.Query,
	fp string,
	ctxData models.Context,
	genOut models.AgentOutput,
	startedAt time.Time,
) {
	bgCtx := context.Background()
	timeout := time.Until(vreq.ExpiresAt)

	status, err := o.humanLoop.AwaitDecision(bgCtx, vreq.ID, timeout)

	var resp models.FinalResponse
	switch {
	case errors.Is(err, humanloop.ErrExpired) || status == models.ValidationExpired:
		resp = models.FinalResponse{
			Success:          true,
			Answer:           fallbackMessage(vreq.DetectedLanguage),
			DetectedLanguage: vreq.DetectedLanguage,
			TargetLanguage:   vreq.TargetLanguage,
			Consensus:        models.ConsensusFallback,
			IterationsUsed:   1,
			Error:            string(ErrHumanLoopExpired),
			ValidationID:     vreq.ID,
		}
	case status == models.ValidationRejected:
		resp = models.FinalResponse{
			Success:          true,
			Answer:           fallbackMessage(vreq.DetectedLanguage),
			DetectedLanguage: vreq.DetectedLanguage,
			TargetLanguage:   vreq.TargetLanguage,
			Consensus:        models.ConsensusFallback,
			IterationsUsed:   1,
			ValidationID:     vreq.ID,
		}
	case status == models.ValidationApproved, status == models.ValidationModified:
		draft := genOut.Text
		if status == models.ValidationModified {
			if resolved, ok := o.humanLoop.Get(bgCtx, vreq.ID); ok && resolved.ModifiedText != "" {
				draft = resolved.ModifiedText
			}
		}
		resp = o.finalize(bgCtx, q, fp, vreq.DetectedLanguage, vreq.TargetLanguage, draft, ctxData.Sources, models.ConsensusApproved, 1, startedAt, false)
		resp.ValidationID = vreq.ID
	default:
		resp = o.failedResponse(vreq.DetectedLanguage, vreq.TargetLanguage, ctxData.Sources, 1, startedAt, err)
		resp.ValidationID = vreq.ID
	}

	resp.ProcessingTimeMS = time.Since(startedAt).Milliseconds()
	o.storeValidationResult(vreq.ID, resp)
	o.auditSafe(bgCtx, audit.EventValidationResolve, q.RequestID, fp, map[string]any{"validation_id": vreq.ID, "status": string(status)})
	o.cache.Put(fp, resp)
}

// fallbackMessage is the language-appropriate safe-refusal text used on
// REJECTED, EXPIRED, and terminal-without-YES outcomes.
func fallbackMessage(lang models.Language) string {
	switch lang {
	case models.LangFR:
		return "Je ne peux pas répondre en toute sécurité sans un examen complémentaire."
	case models.LangES:
		return "No puedo responder con seguridad sin una revisión adicional."
	case models.LangDE:
		return "Ich kann ohne weitere Prüfung nicht sicher antworten."
	default:
		return "I cannot safely answer without further review."
	}
}

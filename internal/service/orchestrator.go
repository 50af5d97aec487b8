// Package service implements the diagnostic orchestration policy and the
// submission workflow that ties the pipeline, store, and report factory
// together.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oncodiag-server/internal/domain"
	"github.com/oncodiag-server/internal/pipeline"
	"github.com/oncodiag-server/pkg/prediction"
)

// FeatureSource derives the numeric feature set for the current submission
// text, used by the legacy fallback path. The legacy prediction endpoint
// scores explicit features; scoring anything other than features derived from
// the submission at hand risks a stale cross-patient match, so when no source
// is configured the legacy rung fails instead of guessing.
type FeatureSource interface {
	FeaturesFor(ctx context.Context, text string) (map[string]float64, error)
}

// Orchestrator decides which model(s) to invoke for a submission, executes
// them with the fallback ladder, and merges the outcomes. A run never fails:
// it always terminates in StateDone with either a real sub-result or a
// clearly-flagged degraded placeholder.
type Orchestrator struct {
	pipeline    *pipeline.Pipeline
	backend     prediction.Backend
	features    FeatureSource
	callTimeout time.Duration
	logger      *logrus.Logger
}

// NewOrchestrator creates a new orchestrator. features may be nil, in which
// case the legacy fallback rung is unavailable and a primary failure degrades
// directly to the placeholder.
func NewOrchestrator(
	pl *pipeline.Pipeline,
	backend prediction.Backend,
	features FeatureSource,
	callTimeout time.Duration,
	logger *logrus.Logger,
) *Orchestrator {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Orchestrator{
		pipeline:    pl,
		backend:     backend,
		features:    features,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Run executes one orchestration run for the submission. The returned outcome
// is always terminal (StateDone); partial success is a valid terminal outcome,
// not an error.
func (o *Orchestrator) Run(ctx context.Context, sub domain.Submission) *domain.DiagnosticOutcome {
	outcome := &domain.DiagnosticOutcome{
		Mode:  sub.Mode,
		State: domain.StateIdle,
	}

	o.logger.WithFields(logrus.Fields{
		"patient_id": sub.PatientID,
		"mode":       sub.Mode.String(),
	}).Info("Starting diagnostic orchestration run")

	switch sub.Mode {
	case domain.ModeBoth:
		o.runConcurrent(ctx, sub, outcome)
	case domain.ModeSecondaryOnly:
		outcome.State = domain.StateRunningSecondary
		o.runSecondary(ctx, sub, outcome)
	default: // ModePrimaryOnly, ModeAutoCascade
		outcome.State = domain.StateRunningPrimary
		o.runPrimaryWithFallback(ctx, sub, outcome)
		if sub.Mode == domain.ModeAutoCascade && o.shouldCascade(outcome) {
			outcome.State = domain.StateRunningSecondary
			o.runSecondary(ctx, sub, outcome)
		}
	}

	o.merge(outcome)
	outcome.State = domain.StateDone

	o.logger.WithFields(logrus.Fields{
		"patient_id":    sub.PatientID,
		"diagnosis":     outcome.Diagnosis,
		"confidence":    outcome.Confidence,
		"degraded":      outcome.Degraded,
		"has_secondary": outcome.Secondary != nil,
	}).Info("Diagnostic orchestration run completed")

	return outcome
}

// runConcurrent issues the primary and secondary calls independently. A
// failure in either must not prevent the other's result from being included.
func (o *Orchestrator) runConcurrent(ctx context.Context, sub domain.Submission, outcome *domain.DiagnosticOutcome) {
	outcome.State = domain.StateRunningPrimary

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.runPrimaryWithFallback(ctx, sub, outcome)
	}()
	go func() {
		defer wg.Done()
		o.runSecondary(ctx, sub, outcome)
	}()
	wg.Wait()
}

// runPrimaryWithFallback invokes the primary pipeline and, on failure, walks
// the fallback ladder: the legacy two-step path first, then a clearly-flagged
// placeholder. The ladder always terminates in a value.
func (o *Orchestrator) runPrimaryWithFallback(ctx context.Context, sub domain.Submission, outcome *domain.DiagnosticOutcome) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	normalized, err := o.pipeline.Run(callCtx, domain.ModelSoftmax, sub.Description)
	if err == nil {
		outcome.Primary = &domain.PrimaryResult{
			Class:             normalized.Class,
			Diagnosis:         normalized.Label,
			ProbabilityClass0: normalized.ConfidenceClass0,
			ProbabilityClass1: normalized.ConfidenceClass1,
			Confidence:        normalized.ConfidencePercent,
			Source:            domain.SourceAutomatic,
		}
		return
	}

	o.logWarn(err, "Primary prediction failed, attempting legacy fallback")
	causes := []string{describeCause(err)}

	legacy, legacyErr := o.runLegacy(ctx, sub.Description)
	if legacyErr == nil {
		outcome.Primary = legacy
		o.logger.WithField("diagnosis", legacy.Diagnosis).Info("Legacy fallback path succeeded")
		return
	}

	o.logWarn(legacyErr, "Legacy fallback failed, substituting degraded placeholder")
	causes = append(causes, describeCause(legacyErr))

	// All real attempts exhausted. Substitute an explicit placeholder rather
	// than silently defaulting; the cause travels with the outcome for audit.
	outcome.Primary = &domain.PrimaryResult{
		Class:      -1,
		Diagnosis:  domain.DiagnosisUnknown,
		Confidence: 0,
		Source:     domain.SourcePlaceholder,
	}
	outcome.Degraded = true
	outcome.DegradedCause = strings.Join(causes, "; ")
}

// runLegacy executes the legacy two-step manual path: save the current report
// text, derive a fresh feature set for it, and score those features. If no
// feature source is configured the rung fails; scoring a previously cached
// extraction artifact could silently match a different patient's features.
func (o *Orchestrator) runLegacy(ctx context.Context, text string) (*domain.PrimaryResult, error) {
	if o.features == nil {
		return nil, fmt.Errorf("legacy path unavailable: no feature source for current submission text")
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	if err := o.backend.SaveReport(callCtx, text); err != nil {
		return nil, fmt.Errorf("legacy save step failed: %w", err)
	}

	features, err := o.features.FeaturesFor(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("feature extraction for current text failed: %w", err)
	}

	result, err := o.backend.PredictFeatures(callCtx, features)
	if err != nil {
		return nil, fmt.Errorf("legacy prediction step failed: %w", err)
	}

	confidence := result.ProbabilityClass0
	if result.Prediction == domain.ClassMalignant {
		confidence = result.ProbabilityClass1
	}

	return &domain.PrimaryResult{
		Class:             result.Prediction,
		Diagnosis:         domain.DiagnosisForClass(result.Prediction),
		ProbabilityClass0: result.ProbabilityClass0,
		ProbabilityClass1: result.ProbabilityClass1,
		Confidence:        confidence * 100,
		Source:            domain.SourceLegacy,
	}, nil
}

// runSecondary invokes the risk-stratification pipeline. Its failure is
// tolerated: risk stratification is an enrichment, not a blocking requirement.
func (o *Orchestrator) runSecondary(ctx context.Context, sub domain.Submission, outcome *domain.DiagnosticOutcome) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	normalized, err := o.pipeline.Run(callCtx, domain.ModelMLP, sub.Description)
	if err != nil {
		o.logWarn(err, "Secondary risk stratification failed, proceeding without it")
		outcome.SecondaryCause = describeCause(err)
		return
	}
	outcome.Secondary = normalized.Risk
}

// shouldCascade reports whether an AutoCascade run must trigger the secondary
// model: only when the primary resolved to the malignant class.
func (o *Orchestrator) shouldCascade(outcome *domain.DiagnosticOutcome) bool {
	return outcome.Primary != nil &&
		!outcome.Primary.IsPlaceholder() &&
		outcome.Primary.Class == domain.ClassMalignant
}

// merge fills the outcome's headline diagnosis and confidence: prefer the
// primary result; if the primary failed entirely, fall back to the secondary's
// diagnosis field; otherwise Unknown. An outcome with no real sub-result at
// all is degraded regardless of which models were requested.
func (o *Orchestrator) merge(outcome *domain.DiagnosticOutcome) {
	switch {
	case outcome.Primary != nil && !outcome.Primary.IsPlaceholder():
		outcome.Diagnosis = outcome.Primary.Diagnosis
		outcome.Confidence = outcome.Primary.Confidence
	case outcome.Secondary != nil:
		outcome.Diagnosis = outcome.Secondary.Diagnosis
		outcome.Confidence = outcome.Secondary.Confidence
	default:
		outcome.Diagnosis = domain.DiagnosisUnknown
		outcome.Confidence = 0
	}

	if !outcome.HasRealResult() {
		outcome.Degraded = true
		if outcome.DegradedCause == "" {
			outcome.DegradedCause = outcome.SecondaryCause
		}
	}
}

func (o *Orchestrator) logWarn(err error, msg string) {
	entry := o.logger.WithError(err)
	if pe, ok := domain.AsPredictionError(err); ok {
		entry = entry.WithFields(logrus.Fields{
			"error_kind": string(pe.Kind),
			"taxonomy":   string(pe.Taxonomy()),
			"endpoint":   pe.Endpoint,
		})
	}
	entry.Warn(msg)
}

// describeCause renders an error for the outcome's audit trail, keeping the
// taxonomy visible for prediction errors.
func describeCause(err error) string {
	if pe, ok := domain.AsPredictionError(err); ok {
		return fmt.Sprintf("%s: %s", pe.Taxonomy(), pe.Error())
	}
	return err.Error()
}

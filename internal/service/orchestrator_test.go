package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncodiag-server/internal/domain"
	"github.com/oncodiag-server/internal/pipeline"
	"github.com/oncodiag-server/pkg/prediction"
)

// scriptedBackend returns canned responses or errors per model kind and records
// every call so tests can assert on cascade behavior.
type scriptedBackend struct {
	mu       sync.Mutex
	calls    map[domain.ModelKind]int
	byKind   map[domain.ModelKind]*prediction.Response
	errs     map[domain.ModelKind]error
	saveErr  error
	saved    []string
	legacy   *prediction.LegacyPrediction
	legacyErr error
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{
		calls:  make(map[domain.ModelKind]int),
		byKind: make(map[domain.ModelKind]*prediction.Response),
		errs:   make(map[domain.ModelKind]error),
	}
}

func (s *scriptedBackend) Predict(ctx context.Context, kind domain.ModelKind, text string) (*prediction.Response, error) {
	s.mu.Lock()
	s.calls[kind]++
	resp, err := s.byKind[kind], s.errs[kind]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *scriptedBackend) SaveReport(ctx context.Context, text string) error {
	s.mu.Lock()
	s.saved = append(s.saved, text)
	s.mu.Unlock()
	return s.saveErr
}

func (s *scriptedBackend) PredictFeatures(ctx context.Context, features map[string]float64) (*prediction.LegacyPrediction, error) {
	if s.legacyErr != nil {
		return nil, s.legacyErr
	}
	return s.legacy, nil
}

func (s *scriptedBackend) callCount(kind domain.ModelKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

type staticFeatures struct {
	features map[string]float64
	err      error
}

func (s *staticFeatures) FeaturesFor(ctx context.Context, text string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.features, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestOrchestrator(backend prediction.Backend, features FeatureSource) *Orchestrator {
	logger := testLogger()
	pl := pipeline.New(backend, domain.CacheConfig{Enabled: false}, logger)
	return NewOrchestrator(pl, backend, features, 5*time.Second, logger)
}

func benignResponse() *prediction.Response {
	return &prediction.Response{
		Prediction: prediction.RawPrediction{
			Class:             domain.ClassBenign,
			Diagnosis:         domain.DiagnosisBenign,
			Confidence:        95.0,
			ProbabilityClass0: 0.95,
			ProbabilityClass1: 0.05,
		},
	}
}

func malignantResponse() *prediction.Response {
	return &prediction.Response{
		Prediction: prediction.RawPrediction{
			Class:             domain.ClassMalignant,
			Diagnosis:         domain.DiagnosisMalignant,
			Confidence:        92.3,
			ProbabilityClass0: 0.077,
			ProbabilityClass1: 0.923,
		},
	}
}

func highRiskResponse() *prediction.Response {
	return &prediction.Response{
		Prediction: prediction.RawPrediction{
			Class:             domain.ClassMalignant,
			Diagnosis:         domain.DiagnosisMalignant,
			Confidence:        81.0,
			ProbabilityClass0: 0.19,
			ProbabilityClass1: 0.81,
			RiskScore:         0.81,
			RiskLevelEN:       string(domain.RiskHigh),
			RecommendationFR:  "Urgence – prise en charge rapide recommandée",
			Color:             "red",
		},
	}
}

func submission(mode domain.SelectionMode) domain.Submission {
	return domain.Submission{
		PatientID:   "P-100",
		PatientName: "Test Patient",
		Description: "irregular spiculated mass with microcalcifications",
		Mode:        mode,
	}
}

func TestRun_BothMode_MergesBothResults(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelSoftmax] = malignantResponse()
	backend.byKind[domain.ModelMLP] = highRiskResponse()

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeBoth))

	require.NotNil(t, outcome.Primary)
	require.NotNil(t, outcome.Secondary)
	assert.Equal(t, domain.StateDone, outcome.State)
	assert.Equal(t, domain.DiagnosisMalignant, outcome.Diagnosis)
	assert.InDelta(t, 92.3, outcome.Confidence, 0.001)
	assert.Equal(t, domain.RiskHigh, outcome.Secondary.Tier)
	assert.False(t, outcome.Degraded)
	assert.Equal(t, domain.SourceAutomatic, outcome.Primary.Source)
}

func TestRun_BothMode_SecondaryFailureDoesNotBlockPrimary(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelSoftmax] = benignResponse()
	backend.errs[domain.ModelMLP] = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/extract_and_predict_mlp", "connection refused", nil)

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeBoth))

	require.NotNil(t, outcome.Primary)
	assert.Nil(t, outcome.Secondary)
	assert.Equal(t, domain.DiagnosisBenign, outcome.Diagnosis)
	assert.False(t, outcome.Degraded, "a real primary result is not a degraded outcome")
	assert.Contains(t, outcome.SecondaryCause, "TransportError")
}

func TestRun_AutoCascade_BenignSkipsSecondary(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelSoftmax] = benignResponse()

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeAutoCascade))

	assert.Equal(t, 1, backend.callCount(domain.ModelSoftmax))
	assert.Zero(t, backend.callCount(domain.ModelMLP), "benign primary must not trigger risk stratification")
	assert.Nil(t, outcome.Secondary)
	assert.Equal(t, domain.DiagnosisBenign, outcome.Diagnosis)
}

func TestRun_AutoCascade_MalignantTriggersSecondary(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelSoftmax] = malignantResponse()
	backend.byKind[domain.ModelMLP] = highRiskResponse()

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeAutoCascade))

	assert.Equal(t, 1, backend.callCount(domain.ModelMLP))
	require.NotNil(t, outcome.Secondary)
	assert.Equal(t, domain.RiskHigh, outcome.Secondary.Tier)
	assert.Equal(t, domain.DiagnosisMalignant, outcome.Diagnosis)
}

func TestRun_AutoCascade_PlaceholderPrimaryDoesNotCascade(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelSoftmax] = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/extract_and_predict", "connection refused", nil)

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeAutoCascade))

	assert.Zero(t, backend.callCount(domain.ModelMLP))
	require.NotNil(t, outcome.Primary)
	assert.True(t, outcome.Primary.IsPlaceholder())
	assert.True(t, outcome.Degraded)
}

func TestRun_PrimaryOnly_NeverCascades(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelSoftmax] = malignantResponse()

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModePrimaryOnly))

	assert.Zero(t, backend.callCount(domain.ModelMLP), "primary_only must not invoke the risk model even for malignant")
	assert.Nil(t, outcome.Secondary)
}

func TestRun_SecondaryOnly(t *testing.T) {
	backend := newScriptedBackend()
	backend.byKind[domain.ModelMLP] = highRiskResponse()

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeSecondaryOnly))

	assert.Zero(t, backend.callCount(domain.ModelSoftmax))
	require.NotNil(t, outcome.Secondary)
	assert.Nil(t, outcome.Primary)
	assert.Equal(t, domain.DiagnosisMalignant, outcome.Diagnosis, "headline falls back to the secondary diagnosis")
	assert.False(t, outcome.Degraded)
}

func TestRun_SecondaryOnly_FailureIsDegraded(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelMLP] = domain.NewPredictionError(
		domain.ErrKindTimeout, "/extract_and_predict_mlp", "deadline exceeded", context.DeadlineExceeded)

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeSecondaryOnly))

	assert.Equal(t, domain.StateDone, outcome.State)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, domain.DiagnosisUnknown, outcome.Diagnosis)
	assert.Contains(t, outcome.DegradedCause, "TransportError")
}

func TestRun_FallbackLadder_LegacySucceeds(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelSoftmax] = domain.NewPredictionError(
		domain.ErrKindServerRejected, "/extract_and_predict", "extraction failed", nil)
	backend.legacy = &prediction.LegacyPrediction{
		Prediction:        domain.ClassMalignant,
		ProbabilityClass0: 0.1,
		ProbabilityClass1: 0.9,
	}
	features := &staticFeatures{features: map[string]float64{"radius_mean": 17.99}}

	o := newTestOrchestrator(backend, features)
	outcome := o.Run(context.Background(), submission(domain.ModePrimaryOnly))

	require.NotNil(t, outcome.Primary)
	assert.Equal(t, domain.SourceLegacy, outcome.Primary.Source)
	assert.Equal(t, domain.ClassMalignant, outcome.Primary.Class)
	assert.Equal(t, domain.DiagnosisMalignant, outcome.Diagnosis)
	assert.InDelta(t, 90.0, outcome.Confidence, 0.001)
	assert.False(t, outcome.Degraded, "a legacy result is a real result")
	require.Len(t, backend.saved, 1, "legacy path saves the current report text first")
}

func TestRun_FallbackLadder_NoFeatureSourceSkipsLegacy(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelSoftmax] = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/extract_and_predict", "connection refused", nil)

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModePrimaryOnly))

	require.NotNil(t, outcome.Primary)
	assert.True(t, outcome.Primary.IsPlaceholder())
	assert.Equal(t, -1, outcome.Primary.Class)
	assert.Equal(t, domain.DiagnosisUnknown, outcome.Diagnosis)
	assert.Zero(t, outcome.Confidence)
	assert.True(t, outcome.Degraded)
	assert.Contains(t, outcome.DegradedCause, "no feature source")
	assert.Empty(t, backend.saved, "legacy save step must not run without a feature source")
}

func TestRun_FallbackLadder_AllRungsFail(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelSoftmax] = domain.NewPredictionError(
		domain.ErrKindTimeout, "/extract_and_predict", "deadline exceeded", nil)
	backend.legacyErr = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/predict2", "connection refused", nil)
	features := &staticFeatures{features: map[string]float64{"radius_mean": 12.5}}

	o := newTestOrchestrator(backend, features)
	outcome := o.Run(context.Background(), submission(domain.ModePrimaryOnly))

	require.NotNil(t, outcome.Primary)
	assert.True(t, outcome.Primary.IsPlaceholder())
	assert.True(t, outcome.Degraded)
	assert.Contains(t, outcome.DegradedCause, "TIMEOUT")
	assert.Contains(t, outcome.DegradedCause, "UNREACHABLE", "both rungs' causes travel with the outcome")
	assert.Equal(t, domain.StateDone, outcome.State, "a fully-failed run still terminates cleanly")
}

func TestRun_BothMode_BothUnreachable(t *testing.T) {
	backend := newScriptedBackend()
	backend.errs[domain.ModelSoftmax] = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/extract_and_predict", "connection refused", nil)
	backend.errs[domain.ModelMLP] = domain.NewPredictionError(
		domain.ErrKindUnreachable, "/extract_and_predict_mlp", "connection refused", nil)

	o := newTestOrchestrator(backend, nil)
	outcome := o.Run(context.Background(), submission(domain.ModeBoth))

	assert.Equal(t, domain.StateDone, outcome.State)
	assert.True(t, outcome.Degraded)
	assert.Equal(t, domain.DiagnosisUnknown, outcome.Diagnosis)
	assert.Zero(t, outcome.Confidence)
	assert.NotEmpty(t, outcome.DegradedCause)
	assert.NotEmpty(t, outcome.SecondaryCause)
}

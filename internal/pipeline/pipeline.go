// Package pipeline normalizes the extract-then-predict remote contract into
// one call per model kind with a uniform result shape.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/oncodiag-server/internal/domain"
	"github.com/oncodiag-server/pkg/prediction"
)

// Pipeline drives one extract-and-predict round trip against a chosen model
// variant and maps the heterogeneous backend payloads into the normalized
// prediction shape. Prediction errors propagate unchanged; nothing is
// swallowed at this layer.
type Pipeline struct {
	backend prediction.Backend
	cache   *expirable.LRU[string, domain.NormalizedPrediction]
	logger  *logrus.Logger
}

// New creates a pipeline over the given backend. When cache is enabled,
// successful normalized predictions are cached per (model, text) so the same
// text is never scored twice against the same model within the TTL window.
func New(backend prediction.Backend, cacheCfg domain.CacheConfig, logger *logrus.Logger) *Pipeline {
	p := &Pipeline{
		backend: backend,
		logger:  logger,
	}
	if cacheCfg.Enabled {
		size := cacheCfg.MaxEntries
		if size <= 0 {
			size = 256
		}
		p.cache = expirable.NewLRU[string, domain.NormalizedPrediction](size, nil, cacheCfg.TTL)
	}
	return p
}

// Run executes one extract-and-predict round trip for the given model kind.
func (p *Pipeline) Run(ctx context.Context, kind domain.ModelKind, text string) (*domain.NormalizedPrediction, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("pipeline: unknown model kind %q", kind)
	}

	key := cacheKey(kind, text)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			p.logger.WithFields(logrus.Fields{
				"model": kind.String(),
			}).Debug("Prediction served from cache")
			result := cached
			return &result, nil
		}
	}

	resp, err := p.backend.Predict(ctx, kind, text)
	if err != nil {
		return nil, err
	}

	normalized := normalize(kind, resp)
	if p.cache != nil {
		p.cache.Add(key, *normalized)
	}

	fields := logrus.Fields{
		"model":      kind.String(),
		"class":      normalized.Class,
		"label":      normalized.Label,
		"confidence": normalized.ConfidencePercent,
	}
	if resp.Extraction != nil {
		fields["features_extracted"] = resp.Extraction.FeaturesExtracted
		fields["total_features"] = resp.Extraction.TotalFeatures
	}
	p.logger.WithFields(fields).Info("Prediction pipeline completed")

	return normalized, nil
}

// normalize maps backend-specific field names into the uniform shape.
func normalize(kind domain.ModelKind, resp *prediction.Response) *domain.NormalizedPrediction {
	raw := resp.Prediction

	label := raw.Diagnosis
	if label == "" {
		label = domain.DiagnosisForClass(raw.Class)
	}

	confidence := raw.Confidence
	if confidence == 0 {
		confidence = math.Max(raw.ProbabilityClass0, raw.ProbabilityClass1) * 100
	}

	normalized := &domain.NormalizedPrediction{
		Class:             raw.Class,
		Label:             label,
		ConfidenceClass0:  raw.ProbabilityClass0,
		ConfidenceClass1:  raw.ProbabilityClass1,
		ConfidencePercent: confidence,
	}

	if kind == domain.ModelMLP {
		tier := domain.RiskLevel(raw.RiskLevelEN)
		if !tier.IsValid() {
			tier = domain.RiskLevelFromScore(raw.RiskScore)
		}
		recommendation := raw.RecommendationFR
		if recommendation == "" {
			recommendation = tier.Recommendation()
		}
		color := raw.Color
		if color == "" {
			color = tier.Color()
		}
		normalized.Risk = &domain.RiskResult{
			Tier:              tier,
			Score:             raw.RiskScore,
			Recommendation:    recommendation,
			Color:             color,
			Class:             raw.Class,
			Diagnosis:         label,
			Confidence:        confidence,
			ProbabilityClass0: raw.ProbabilityClass0,
			ProbabilityClass1: raw.ProbabilityClass1,
		}
	}

	return normalized
}

func cacheKey(kind domain.ModelKind, text string) string {
	sum := sha256.Sum256([]byte(string(kind) + "|" + text))
	return hex.EncodeToString(sum[:])
}

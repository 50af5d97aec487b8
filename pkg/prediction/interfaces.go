// Package prediction contains HTTP clients for the remote ML prediction
// service: the automatic extract-and-predict endpoints for both model kinds
// and the legacy two-step fallback path.
package prediction

import (
	"context"

	"github.com/oncodiag-server/internal/domain"
)

// Backend abstracts the remote prediction service so the pipeline and
// orchestration layers can be tested against fakes.
type Backend interface {
	// Predict drives one extract-and-predict round trip against the endpoint
	// for the given model kind. Failures are always *domain.PredictionError.
	Predict(ctx context.Context, kind domain.ModelKind, text string) (*Response, error)

	// SaveReport submits the report text to the legacy save endpoint. It is
	// the first step of the legacy fallback path.
	SaveReport(ctx context.Context, text string) error

	// PredictFeatures scores an explicit feature set against the legacy
	// prediction endpoint. It is the second step of the legacy fallback path.
	PredictFeatures(ctx context.Context, features map[string]float64) (*LegacyPrediction, error)
}

// Response is the decoded payload of a successful extract-and-predict call.
type Response struct {
	Prediction RawPrediction  `json:"prediction"`
	Extraction *RawExtraction `json:"extraction,omitempty"`
}

// RawPrediction is the endpoint-specific prediction payload. Risk fields are
// populated only by the MLP endpoint.
type RawPrediction struct {
	Class             int     `json:"class"`
	Diagnosis         string  `json:"diagnosis"`
	Confidence        float64 `json:"confidence"`
	ProbabilityClass0 float64 `json:"probability_class0"`
	ProbabilityClass1 float64 `json:"probability_class1"`

	RiskScore        float64 `json:"risk_score,omitempty"`
	RiskLevelEN      string  `json:"risk_level_en,omitempty"`
	RiskLevelFR      string  `json:"risk_level_fr,omitempty"`
	RecommendationFR string  `json:"recommendation_fr,omitempty"`
	Color            string  `json:"color,omitempty"`
}

// RawExtraction reports how many features the backend derived from the text.
type RawExtraction struct {
	FeaturesExtracted int                `json:"features_extracted"`
	TotalFeatures     int                `json:"total_features"`
	Features          map[string]float64 `json:"features"`
}

// LegacyPrediction is the response shape of the legacy prediction endpoint.
type LegacyPrediction struct {
	Prediction        int     `json:"prediction"`
	ProbabilityClass0 float64 `json:"probability_class0"`
	ProbabilityClass1 float64 `json:"probability_class1"`
}

package domain

import (
	"fmt"
	"time"
)

// Patient is a roster entry. The id is externally assigned and is the stable
// identity key; status and risk level summarize the most recent report.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	LastVisit time.Time `json:"last_visit"`
	Status    string    `json:"status,omitempty"`
	RiskLevel RiskLevel `json:"risk_level,omitempty"`
}

// Validate ensures the patient record meets storage requirements.
func (p *Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("patient validation: %w", ErrEmptyPatientID)
	}
	if p.Age < 0 {
		return fmt.Errorf("patient validation: age must be non-negative, got %d", p.Age)
	}
	return nil
}

// MedicalReport is an immutable diagnostic record. Risk fields are present
// only when the risk-stratification model ran; Degraded marks reports whose
// diagnosis is a placeholder substituted after all prediction attempts failed.
type MedicalReport struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`
	FileName       string    `json:"file_name,omitempty"`
	FileType       FileType  `json:"file_type"`
	PreviewPayload string    `json:"preview_payload,omitempty"`

	Diagnosis  string  `json:"diagnosis"`
	Confidence float64 `json:"confidence"`

	RiskLevel      RiskLevel `json:"risk_level,omitempty"`
	RiskScore      float64   `json:"risk_score,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`

	Degraded      bool   `json:"degraded"`
	DegradedCause string `json:"degraded_cause,omitempty"`
}

// Submission carries one report submission from a UI collaborator into the
// orchestration core.
type Submission struct {
	PatientID      string        `json:"patient_id"`
	PatientName    string        `json:"patient_name"`
	PatientAge     int           `json:"patient_age"`
	Description    string        `json:"description"`
	FileName       string        `json:"file_name,omitempty"`
	FileType       FileType      `json:"file_type,omitempty"`
	PreviewPayload string        `json:"preview_payload,omitempty"`
	Mode           SelectionMode `json:"mode"`
}

// Validate ensures the submission can be orchestrated.
func (s *Submission) Validate() error {
	if s.PatientID == "" {
		return fmt.Errorf("submission validation: %w", ErrEmptyPatientID)
	}
	if s.Description == "" {
		return fmt.Errorf("submission validation: %w", ErrEmptyDescription)
	}
	if !s.Mode.IsValid() {
		return fmt.Errorf("submission validation: %w: %q", ErrInvalidMode, s.Mode)
	}
	if s.FileType != "" && !s.FileType.IsValid() {
		return fmt.Errorf("submission validation: %w: %q", ErrInvalidFileType, s.FileType)
	}
	if s.PatientAge < 0 {
		return fmt.Errorf("submission validation: patient age must be non-negative, got %d", s.PatientAge)
	}
	return nil
}

// PrimaryResult is the binary malignancy classification produced by the
// primary model or one of its fallback rungs.
type PrimaryResult struct {
	Class             int          `json:"class"`
	Diagnosis         string       `json:"diagnosis"`
	ProbabilityClass0 float64      `json:"probability_class0"`
	ProbabilityClass1 float64      `json:"probability_class1"`
	Confidence        float64      `json:"confidence"`
	Source            ResultSource `json:"source"`
}

// IsPlaceholder reports whether this result was synthesized after all real
// prediction attempts failed.
func (r *PrimaryResult) IsPlaceholder() bool {
	return r != nil && r.Source == SourcePlaceholder
}

// RiskResult is the risk-stratification enrichment produced by the secondary
// model. The diagnosis fields mirror the MLP payload and serve as the headline
// fallback when the primary path failed entirely.
type RiskResult struct {
	Tier              RiskLevel `json:"risk_level"`
	Score             float64   `json:"risk_score"`
	Recommendation    string    `json:"recommendation"`
	Color             string    `json:"color"`
	Class             int       `json:"class"`
	Diagnosis         string    `json:"diagnosis"`
	Confidence        float64   `json:"confidence"`
	ProbabilityClass0 float64   `json:"probability_class0"`
	ProbabilityClass1 float64   `json:"probability_class1"`
}

// DiagnosticOutcome is the transient merged result of one orchestration run.
// Either sub-result may be nil when the corresponding model call failed or was
// skipped; Diagnosis and Confidence are the merged headline fields.
type DiagnosticOutcome struct {
	Primary   *PrimaryResult `json:"primary,omitempty"`
	Secondary *RiskResult    `json:"secondary,omitempty"`

	Diagnosis  string  `json:"diagnosis"`
	Confidence float64 `json:"confidence"`

	Degraded       bool   `json:"degraded"`
	DegradedCause  string `json:"degraded_cause,omitempty"`
	SecondaryCause string `json:"secondary_cause,omitempty"`

	Mode  SelectionMode `json:"mode"`
	State RunState      `json:"state"`
}

// HasRealResult reports whether at least one sub-result came from an actual
// model prediction rather than a placeholder.
func (o *DiagnosticOutcome) HasRealResult() bool {
	if o.Primary != nil && !o.Primary.IsPlaceholder() {
		return true
	}
	return o.Secondary != nil
}

// NormalizedPrediction is the uniform shape produced by the extraction
// pipeline regardless of which backend answered.
type NormalizedPrediction struct {
	Class             int         `json:"class"`
	Label             string      `json:"label"`
	ConfidenceClass0  float64     `json:"confidence_class0"`
	ConfidenceClass1  float64     `json:"confidence_class1"`
	ConfidencePercent float64     `json:"confidence_percent"`
	Risk              *RiskResult `json:"risk,omitempty"`
}

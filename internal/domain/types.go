// Package domain contains core business entities and types for the diagnostic
// orchestration core: model selection, prediction normalization, and the
// patient/report data model consumed by the UI collaborators.
package domain

import "errors"

// ModelKind selects which remote classifier endpoint to call.
type ModelKind string

const (
	// ModelSoftmax is the primary binary malignancy classifier.
	ModelSoftmax ModelKind = "softmax"
	// ModelMLP is the secondary risk-stratification classifier.
	ModelMLP ModelKind = "mlp"
)

// SelectionMode controls which model(s) an orchestration run invokes.
type SelectionMode string

const (
	ModePrimaryOnly   SelectionMode = "primary_only"
	ModeSecondaryOnly SelectionMode = "secondary_only"
	ModeBoth          SelectionMode = "both"
	// ModeAutoCascade always runs the primary model and runs the secondary
	// only when the primary's predicted class signals malignancy.
	ModeAutoCascade SelectionMode = "auto_cascade"
)

// RunState tracks the orchestration state machine. A run always terminates
// in StateDone; there is no failing terminal state.
type RunState string

const (
	StateIdle             RunState = "idle"
	StateRunningPrimary   RunState = "running_primary"
	StateRunningSecondary RunState = "running_secondary"
	StateDone             RunState = "done"
)

// ResultSource records which rung of the fallback ladder produced a primary
// result, so downstream consumers can tell a real prediction from a placeholder.
type ResultSource string

const (
	SourceAutomatic   ResultSource = "automatic"
	SourceLegacy      ResultSource = "legacy"
	SourcePlaceholder ResultSource = "placeholder"
)

// RiskLevel is the tier assigned by the risk-stratification model.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// FileType identifies the kind of attachment submitted with a report.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypePDF   FileType = "pdf"
	FileTypeNone  FileType = "none"
)

// Binary class indices and diagnosis labels used by the prediction backends.
const (
	ClassBenign    = 0
	ClassMalignant = 1

	DiagnosisBenign    = "Benign"
	DiagnosisMalignant = "Malignant"
	DiagnosisUnknown   = "Unknown"
)

// Validation errors for submission and record integrity
var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyDescription = errors.New("report description is required")
	ErrEmptyPatientID   = errors.New("patient id is required")
	ErrInvalidMode      = errors.New("invalid selection mode")
	ErrInvalidFileType  = errors.New("invalid file type")
)

// IsValid validates the model kind.
func (m ModelKind) IsValid() bool {
	switch m {
	case ModelSoftmax, ModelMLP:
		return true
	default:
		return false
	}
}

// String returns the string representation of the model kind.
func (m ModelKind) String() string {
	return string(m)
}

// IsValid validates the selection mode.
func (s SelectionMode) IsValid() bool {
	switch s {
	case ModePrimaryOnly, ModeSecondaryOnly, ModeBoth, ModeAutoCascade:
		return true
	default:
		return false
	}
}

// IncludesPrimary reports whether the mode requests the primary model.
func (s SelectionMode) IncludesPrimary() bool {
	return s == ModePrimaryOnly || s == ModeBoth || s == ModeAutoCascade
}

// IncludesSecondary reports whether the mode unconditionally requests the
// secondary model. Under ModeAutoCascade the secondary is conditional on the
// primary's class and this returns false.
func (s SelectionMode) IncludesSecondary() bool {
	return s == ModeSecondaryOnly || s == ModeBoth
}

// String returns the string representation of the selection mode.
func (s SelectionMode) String() string {
	return string(s)
}

// IsValid validates the run state.
func (r RunState) IsValid() bool {
	switch r {
	case StateIdle, StateRunningPrimary, StateRunningSecondary, StateDone:
		return true
	default:
		return false
	}
}

// IsValid validates the risk level.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// FrenchLabel returns the French tier label reported by the MLP backend.
func (r RiskLevel) FrenchLabel() string {
	switch r {
	case RiskLow:
		return "Faible risque"
	case RiskMedium:
		return "Risque intermédiaire"
	case RiskHigh:
		return "Risque élevé"
	default:
		return ""
	}
}

// Color returns the UI color code associated with the risk tier.
func (r RiskLevel) Color() string {
	switch r {
	case RiskLow:
		return "green"
	case RiskMedium:
		return "orange"
	case RiskHigh:
		return "red"
	default:
		return ""
	}
}

// Recommendation returns the clinician-facing recommendation text for the tier.
func (r RiskLevel) Recommendation() string {
	switch r {
	case RiskLow:
		return "Pas d'urgence – suivi standard recommandé"
	case RiskMedium:
		return "Évaluation complémentaire conseillée rapidement"
	case RiskHigh:
		return "Urgence – prise en charge rapide recommandée"
	default:
		return ""
	}
}

// RiskLevelFromScore maps a risk score in [0,1] to a tier using the backend's
// thresholds: <=0.3 Low, <0.7 Medium, else High.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score <= 0.3:
		return RiskLow
	case score < 0.7:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// DiagnosisForClass maps a binary class index to its diagnosis label.
func DiagnosisForClass(class int) string {
	switch class {
	case ClassBenign:
		return DiagnosisBenign
	case ClassMalignant:
		return DiagnosisMalignant
	default:
		return DiagnosisUnknown
	}
}

// IsValid validates the file type.
func (f FileType) IsValid() bool {
	switch f {
	case FileTypeImage, FileTypePDF, FileTypeNone:
		return true
	default:
		return false
	}
}

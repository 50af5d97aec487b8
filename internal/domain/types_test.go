package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelFromScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  RiskLevel
	}{
		{"zero score", 0.0, RiskLow},
		{"low boundary", 0.3, RiskLow},
		{"just above low", 0.31, RiskMedium},
		{"mid range", 0.5, RiskMedium},
		{"high boundary", 0.7, RiskHigh},
		{"high score", 0.81, RiskHigh},
		{"max score", 1.0, RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelFromScore(tt.score))
		})
	}
}

func TestRiskLevel_Metadata(t *testing.T) {
	assert.Equal(t, "green", RiskLow.Color())
	assert.Equal(t, "orange", RiskMedium.Color())
	assert.Equal(t, "red", RiskHigh.Color())

	assert.Equal(t, "Faible risque", RiskLow.FrenchLabel())
	assert.NotEmpty(t, RiskHigh.Recommendation())
}

func TestDiagnosisForClass(t *testing.T) {
	assert.Equal(t, DiagnosisBenign, DiagnosisForClass(ClassBenign))
	assert.Equal(t, DiagnosisMalignant, DiagnosisForClass(ClassMalignant))
	assert.Equal(t, DiagnosisUnknown, DiagnosisForClass(-1))
	assert.Equal(t, DiagnosisUnknown, DiagnosisForClass(2))
}

func TestSelectionMode_Includes(t *testing.T) {
	assert.True(t, ModePrimaryOnly.IncludesPrimary())
	assert.False(t, ModePrimaryOnly.IncludesSecondary())

	assert.False(t, ModeSecondaryOnly.IncludesPrimary())
	assert.True(t, ModeSecondaryOnly.IncludesSecondary())

	assert.True(t, ModeBoth.IncludesPrimary())
	assert.True(t, ModeBoth.IncludesSecondary())

	// AutoCascade's secondary is conditional, not unconditional
	assert.True(t, ModeAutoCascade.IncludesPrimary())
	assert.False(t, ModeAutoCascade.IncludesSecondary())
}

func TestSelectionMode_IsValid(t *testing.T) {
	for _, mode := range []SelectionMode{ModePrimaryOnly, ModeSecondaryOnly, ModeBoth, ModeAutoCascade} {
		assert.True(t, mode.IsValid(), mode)
	}
	assert.False(t, SelectionMode("").IsValid())
	assert.False(t, SelectionMode("everything").IsValid())
}

func TestSubmission_Validate(t *testing.T) {
	valid := Submission{
		PatientID:   "P001",
		Description: "suspicious mass",
		Mode:        ModeAutoCascade,
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.PatientID = ""
	assert.ErrorIs(t, missing.Validate(), ErrEmptyPatientID)

	empty := valid
	empty.Description = ""
	assert.ErrorIs(t, empty.Validate(), ErrEmptyDescription)

	badMode := valid
	badMode.Mode = "turbo"
	assert.ErrorIs(t, badMode.Validate(), ErrInvalidMode)

	badFile := valid
	badFile.FileType = "spreadsheet"
	assert.ErrorIs(t, badFile.Validate(), ErrInvalidFileType)

	negativeAge := valid
	negativeAge.PatientAge = -1
	assert.Error(t, negativeAge.Validate())
}

func TestPatient_Validate(t *testing.T) {
	assert.NoError(t, (&Patient{ID: "P001"}).Validate())
	assert.ErrorIs(t, (&Patient{}).Validate(), ErrEmptyPatientID)
	assert.Error(t, (&Patient{ID: "P001", Age: -3}).Validate())
}

func TestDiagnosticOutcome_HasRealResult(t *testing.T) {
	empty := &DiagnosticOutcome{}
	assert.False(t, empty.HasRealResult())

	placeholder := &DiagnosticOutcome{
		Primary: &PrimaryResult{Source: SourcePlaceholder},
	}
	assert.False(t, placeholder.HasRealResult())

	real := &DiagnosticOutcome{
		Primary: &PrimaryResult{Source: SourceAutomatic},
	}
	assert.True(t, real.HasRealResult())

	secondaryOnly := &DiagnosticOutcome{
		Secondary: &RiskResult{Tier: RiskLow},
	}
	assert.True(t, secondaryOnly.HasRealResult())
}

// Package report builds immutable medical reports from diagnostic outcomes.
package report

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oncodiag-server/internal/domain"
)

// Factory builds a MedicalReport from a DiagnosticOutcome plus submitted
// metadata. Given identical inputs the result is deterministic except for the
// generated id and timestamp.
type Factory struct {
	now func() time.Time
	seq atomic.Uint64
}

// NewFactory creates a report factory using the wall clock.
func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

// NewFactoryWithClock creates a report factory with an injected clock.
func NewFactoryWithClock(now func() time.Time) *Factory {
	return &Factory{now: now}
}

// Build creates an immutable report from the outcome and submission. The
// outcome's degraded flag and cause carry through to the report so downstream
// consumers can distinguish a confident result from a placeholder.
func (f *Factory) Build(outcome *domain.DiagnosticOutcome, sub domain.Submission) domain.MedicalReport {
	now := f.now()

	fileType := sub.FileType
	if fileType == "" {
		fileType = domain.FileTypeNone
	}

	r := domain.MedicalReport{
		ID:             f.nextID(now),
		PatientID:      sub.PatientID,
		Date:           now,
		Description:    sub.Description,
		FileName:       sub.FileName,
		FileType:       fileType,
		PreviewPayload: sub.PreviewPayload,
		Diagnosis:      outcome.Diagnosis,
		Confidence:     outcome.Confidence,
		Degraded:       outcome.Degraded,
		DegradedCause:  outcome.DegradedCause,
	}

	if outcome.Secondary != nil {
		r.RiskLevel = outcome.Secondary.Tier
		r.RiskScore = outcome.Secondary.Score
		r.Recommendation = outcome.Secondary.Recommendation
	}

	return r
}

// nextID generates a timestamp-derived id that sorts by creation. The atomic
// sequence suffix keeps ids unique under same-millisecond submissions.
func (f *Factory) nextID(now time.Time) string {
	return fmt.Sprintf("R%d-%04d", now.UnixMilli(), f.seq.Add(1)%10000)
}

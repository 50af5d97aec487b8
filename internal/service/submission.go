package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oncodiag-server/internal/domain"
	"github.com/oncodiag-server/internal/report"
	"github.com/oncodiag-server/internal/store"
)

// Archiver is the durable sink for completed consultations. Archiving is
// best-effort: a failure is logged and never blocks the report.
type Archiver interface {
	SaveConsultation(ctx context.Context, patient domain.Patient, report domain.MedicalReport) error
}

// SubmissionService runs the full submission workflow: validate, orchestrate,
// build the report, and record patient and report in the store.
type SubmissionService struct {
	orchestrator *Orchestrator
	factory      *report.Factory
	records      *store.PatientRecordStore
	archive      Archiver
	logger       *logrus.Logger
}

// NewSubmissionService creates the submission workflow. archive may be nil.
func NewSubmissionService(
	orchestrator *Orchestrator,
	factory *report.Factory,
	records *store.PatientRecordStore,
	archive Archiver,
	logger *logrus.Logger,
) *SubmissionService {
	return &SubmissionService{
		orchestrator: orchestrator,
		factory:      factory,
		records:      records,
		archive:      archive,
		logger:       logger,
	}
}

// Submit processes one report submission end to end. A report is always
// produced for a valid submission, degraded or not; only validation rejects.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.MedicalReport, error) {
	if sub.Mode == "" {
		sub.Mode = domain.ModeAutoCascade
	}
	if err := sub.Validate(); err != nil {
		return domain.MedicalReport{}, err
	}

	outcome := s.orchestrator.Run(ctx, sub)
	built := s.factory.Build(outcome, sub)

	// Register the patient before appending so form-provided name and age
	// land on the roster entry even for a first-time id.
	patient := domain.Patient{
		ID:   sub.PatientID,
		Name: sub.PatientName,
		Age:  sub.PatientAge,
	}
	if err := s.records.Upsert(patient); err != nil {
		return domain.MedicalReport{}, fmt.Errorf("failed to upsert patient: %w", err)
	}
	if err := s.records.AppendReport(sub.PatientID, built); err != nil {
		return domain.MedicalReport{}, fmt.Errorf("failed to append report: %w", err)
	}

	if s.archive != nil {
		stored, _ := s.records.Get(sub.PatientID)
		if err := s.archive.SaveConsultation(ctx, stored, built); err != nil {
			s.logger.WithError(err).WithField("report_id", built.ID).
				Warn("Failed to archive consultation, continuing")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"report_id":  built.ID,
		"patient_id": built.PatientID,
		"diagnosis":  built.Diagnosis,
		"degraded":   built.Degraded,
	}).Info("Report submission completed")

	return built, nil
}

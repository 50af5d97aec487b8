// Package store owns the mutable collection of patients and their report
// history. The in-memory PatientRecordStore is the authoritative roster; the
// SQLite archive is an append-only audit sink.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/oncodiag-server/internal/domain"
)

// PatientRecordStore is an in-memory keyed collection of patients and their
// reports. Writes to a given patient id are serialized by a per-entry mutex,
// so field edits and report appends on the same patient commute; operations
// on different ids proceed concurrently.
type PatientRecordStore struct {
	mu      sync.RWMutex
	entries map[string]*patientEntry
}

type patientEntry struct {
	mu      sync.Mutex
	patient domain.Patient
	reports []domain.MedicalReport
}

// NewPatientRecordStore creates an empty store.
func NewPatientRecordStore() *PatientRecordStore {
	return &PatientRecordStore{
		entries: make(map[string]*patientEntry),
	}
}

// entry returns the entry for id, creating it if absent.
func (s *PatientRecordStore) entry(id string) *patientEntry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	e = &patientEntry{patient: domain.Patient{ID: id}}
	s.entries[id] = e
	return e
}

// Upsert inserts the patient if its id is unseen, otherwise merges the
// provided (non-zero) fields only: an edit never touches the reports sequence.
func (s *PatientRecordStore) Upsert(patient domain.Patient) error {
	if err := patient.Validate(); err != nil {
		return err
	}

	e := s.entry(patient.ID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if patient.Name != "" {
		e.patient.Name = patient.Name
	}
	if patient.Age > 0 {
		e.patient.Age = patient.Age
	}
	if !patient.LastVisit.IsZero() {
		e.patient.LastVisit = patient.LastVisit
	}
	if patient.Status != "" {
		e.patient.Status = patient.Status
	}
	if patient.RiskLevel != "" {
		e.patient.RiskLevel = patient.RiskLevel
	}
	return nil
}

// Get returns a copy of the patient with the given id.
func (s *PatientRecordStore) Get(id string) (domain.Patient, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Patient{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patient, true
}

// AppendReport appends the report to the patient's history, creating the
// patient with placeholder fields if absent. It updates the patient's last
// visit to the report date and refreshes the last-known summary fields; it
// never touches name or age, so concurrent field edits are not lost.
func (s *PatientRecordStore) AppendReport(patientID string, report domain.MedicalReport) error {
	if patientID == "" {
		return domain.ErrEmptyPatientID
	}

	e := s.entry(patientID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reports = append(e.reports, report)
	e.patient.LastVisit = report.Date
	if report.Diagnosis != "" {
		e.patient.Status = report.Diagnosis
	}
	if report.RiskLevel != "" {
		e.patient.RiskLevel = report.RiskLevel
	}
	return nil
}

// ListReports returns the patient's reports in insertion order.
func (s *PatientRecordStore) ListReports(patientID string) []domain.MedicalReport {
	s.mu.RLock()
	e, ok := s.entries[patientID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.MedicalReport, len(e.reports))
	copy(out, e.reports)
	return out
}

// Search returns patients whose id contains the substring, case-insensitive,
// sorted by id.
func (s *PatientRecordStore) Search(substring string) []domain.Patient {
	needle := strings.ToLower(substring)

	s.mu.RLock()
	matched := make([]*patientEntry, 0)
	for id, e := range s.entries {
		if strings.Contains(strings.ToLower(id), needle) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	out := make([]domain.Patient, 0, len(matched))
	for _, e := range matched {
		e.mu.Lock()
		out = append(out, e.patient)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListPatients returns all patients sorted by id.
func (s *PatientRecordStore) ListPatients() []domain.Patient {
	return s.Search("")
}

// ReportCount returns the number of reports stored for the patient.
func (s *PatientRecordStore) ReportCount(patientID string) int {
	s.mu.RLock()
	e, ok := s.entries[patientID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reports)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oncodiag-server/internal/domain"
)

// ConsultationArchive is a durable append-only record of every consultation
// the orchestration core produced, kept alongside the in-memory roster.
// Archiving is best-effort from the submission workflow: a failure here is
// logged by the caller and never blocks the report.
type ConsultationArchive struct {
	db     *sql.DB
	dbPath string
}

// Consultation is one archived submission outcome.
type Consultation struct {
	ID          int64     `json:"id"`
	ReportID    string    `json:"report_id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Description string    `json:"description"`
	FileName    string    `json:"file_name"`
	FileType    string    `json:"file_type"`
	Diagnosis   string    `json:"diagnosis"`
	RiskLevel   string    `json:"risk_level"`
	Confidence  float64   `json:"confidence"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewConsultationArchive opens (creating if needed) the archive database.
func NewConsultationArchive(dbPath string) (*ConsultationArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createArchiveSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &ConsultationArchive{db: db, dbPath: dbPath}, nil
}

func createArchiveSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS consultation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		patient_name TEXT DEFAULT '',
		description TEXT NOT NULL,
		file_name TEXT DEFAULT '',
		file_type TEXT DEFAULT '',
		diagnosis TEXT NOT NULL,
		risk_level TEXT DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_consultation_patient ON consultation(patient_id);
	CREATE INDEX IF NOT EXISTS idx_consultation_created ON consultation(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveConsultation archives the report built for the patient.
func (a *ConsultationArchive) SaveConsultation(ctx context.Context, patient domain.Patient, report domain.MedicalReport) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO consultation (
			report_id, patient_id, patient_name, description,
			file_name, file_type, diagnosis, risk_level,
			confidence, degraded, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.PatientID,
		patient.Name,
		report.Description,
		report.FileName,
		string(report.FileType),
		report.Diagnosis,
		string(report.RiskLevel),
		report.Confidence,
		report.Degraded,
		report.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}
	return nil
}

// ListByPatient returns the archived consultations for a patient, newest first.
func (a *ConsultationArchive) ListByPatient(ctx context.Context, patientID string, limit int) ([]*Consultation, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, report_id, patient_id, patient_name, description,
			file_name, file_type, diagnosis, risk_level,
			confidence, degraded, created_at
		FROM consultation
		WHERE patient_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Consultation
	for rows.Next() {
		c := &Consultation{}
		err := rows.Scan(
			&c.ID, &c.ReportID, &c.PatientID, &c.PatientName, &c.Description,
			&c.FileName, &c.FileType, &c.Diagnosis, &c.RiskLevel,
			&c.Confidence, &c.Degraded, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Count returns the total number of archived consultations.
func (a *ConsultationArchive) Count(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM consultation").Scan(&count)
	return count, err
}

// Close closes the archive and releases resources.
func (a *ConsultationArchive) Close() error {
	return a.db.Close()
}

// Package database persists analysis reports and their findings behind a
// small Store interface, backed by sqlite or postgres through sqlx.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/twmb/murmur3"
	_ "modernc.org/sqlite"

	"github.com/kestrelsec/graphaudit/internal/analyzer"
	"github.com/kestrelsec/graphaudit/internal/config"
	"github.com/kestrelsec/graphaudit/internal/logger"
	"github.com/kestrelsec/graphaudit/pkg/audit"
	"github.com/kestrelsec/graphaudit/pkg/fingerprint"
)

// Store persists full analysis reports and serves them back for the
// dashboard's report history.
type Store interface {
	SaveReport(ctx context.Context, report *analyzer.Report) error
	GetReport(ctx context.Context, reportID string) (*analyzer.Report, error)
	ListReports(ctx context.Context, limit int) ([]ReportSummary, error)
	Close() error
}

// ReportSummary is the row shape for the report history listing.
type ReportSummary struct {
	ID               string    `db:"id" json:"report_id"`
	Target           string    `db:"target" json:"target"`
	Engine           string    `db:"engine" json:"engine"`
	Confidence       int       `db:"confidence" json:"confidence"`
	PositiveFindings int       `db:"positive_findings" json:"positive_findings"`
	TotalFindings    int       `db:"total_findings" json:"total_findings"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type sqlStore struct {
	db     *sqlx.DB
	cfg    config.DatabaseConfig
	logger *logger.Logger
}

// getPlaceholder returns the appropriate placeholder for the database driver
func (s *sqlStore) getPlaceholder(n int) string {
	if s.cfg.Driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (Store, error) {
	log = log.WithComponent("database")

	start := time.Now()
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &sqlStore{
		db:     db,
		cfg:    cfg,
		logger: log,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infow("Database store initialized",
		"driver", cfg.Driver,
		"init_duration_ms", time.Since(start).Milliseconds(),
	)

	return store, nil
}

func (s *sqlStore) migrate() error {
	if s.cfg.Driver == "sqlite" {
		if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		engine TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		security_notes TEXT,
		signals TEXT,
		schema_summary TEXT,
		introspection TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS findings (
		fingerprint TEXT NOT NULL,
		report_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		impact TEXT,
		severity TEXT NOT NULL,
		result BOOLEAN NOT NULL,
		curl_verify TEXT,
		PRIMARY KEY (report_id, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_findings_report_id ON findings(report_id);
	CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	s.logger.Debugw("Database migration completed", "driver", s.cfg.Driver)
	return nil
}

// findingFingerprint gives each finding a stable identity within a report so
// re-saving the same report never duplicates rows.
func findingFingerprint(target string, f audit.Finding) string {
	h := murmur3.New64()
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(f.Title))
	return fmt.Sprintf("%016x", h.Sum64())
}

func (s *sqlStore) SaveReport(ctx context.Context, report *analyzer.Report) error {
	start := time.Now()

	notesJSON, err := json.Marshal(report.Engine.SecurityNotes)
	if err != nil {
		return fmt.Errorf("failed to marshal security notes: %w", err)
	}
	signalsJSON, err := json.Marshal(report.Engine.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}
	schemaJSON, err := json.Marshal(report.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema summary: %w", err)
	}
	introspectionJSON, err := json.Marshal(report.Introspection)
	if err != nil {
		return fmt.Errorf("failed to marshal introspection: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reports (
			id, target, engine, confidence, security_notes,
			signals, schema_summary, introspection, created_at
		) VALUES (
			:id, :target, :engine, :confidence, :security_notes,
			:signals, :schema_summary, :introspection, :created_at
		)
	`

	args := map[string]interface{}{
		"id":             report.ID,
		"target":         report.Target,
		"engine":         report.Engine.Engine,
		"confidence":     report.Engine.Confidence,
		"security_notes": string(notesJSON),
		"signals":        string(signalsJSON),
		"schema_summary": string(schemaJSON),
		"introspection":  string(introspectionJSON),
		"created_at":     report.CreatedAt,
	}

	if _, err := tx.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	conflict := "OR IGNORE"
	suffix := ""
	if s.cfg.Driver == "postgres" {
		conflict = ""
		suffix = " ON CONFLICT (report_id, fingerprint) DO NOTHING"
	}
	findingQuery := fmt.Sprintf(`
		INSERT %s INTO findings (
			fingerprint, report_id, title, description,
			impact, severity, result, curl_verify
		) VALUES (
			:fingerprint, :report_id, :title, :description,
			:impact, :severity, :result, :curl_verify
		)%s
	`, conflict, suffix)

	for _, f := range report.Audit {
		findingArgs := map[string]interface{}{
			"fingerprint": findingFingerprint(report.Target, f),
			"report_id":   report.ID,
			"title":       f.Title,
			"description": f.Description,
			"impact":      f.Impact,
			"severity":    string(f.Severity),
			"result":      f.Result,
			"curl_verify": f.CurlVerify,
		}
		if _, err := tx.NamedExecContext(ctx, findingQuery, findingArgs); err != nil {
			return fmt.Errorf("failed to insert finding %q: %w", f.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	s.logger.Infow("Report saved",
		"report_id", report.ID,
		"target", report.Target,
		"findings", len(report.Audit),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (s *sqlStore) GetReport(ctx context.Context, reportID string) (*analyzer.Report, error) {
	query := fmt.Sprintf(`
		SELECT id, target, engine, confidence, security_notes,
			   signals, schema_summary, introspection, created_at
		FROM reports WHERE id = %s
	`, s.getPlaceholder(1))

	var row struct {
		ID            string    `db:"id"`
		Target        string    `db:"target"`
		Engine        string    `db:"engine"`
		Confidence    int       `db:"confidence"`
		SecurityNotes string    `db:"security_notes"`
		Signals       string    `db:"signals"`
		SchemaSummary string    `db:"schema_summary"`
		Introspection string    `db:"introspection"`
		CreatedAt     time.Time `db:"created_at"`
	}

	if err := s.db.GetContext(ctx, &row, query, reportID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s not found", reportID)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	report := &analyzer.Report{
		ID:     row.ID,
		Target: row.Target,
		Engine: fingerprint.Report{
			Engine:     row.Engine,
			Confidence: row.Confidence,
		},
		CreatedAt: row.CreatedAt,
	}

	if err := json.Unmarshal([]byte(row.SecurityNotes), &report.Engine.SecurityNotes); err != nil {
		return nil, fmt.Errorf("failed to decode security notes: %w", err)
	}
	if row.Signals != "" {
		if err := json.Unmarshal([]byte(row.Signals), &report.Engine.Signals); err != nil {
			return nil, fmt.Errorf("failed to decode signals: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(row.SchemaSummary), &report.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema summary: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Introspection), &report.Introspection); err != nil {
		return nil, fmt.Errorf("failed to decode introspection: %w", err)
	}

	findingQuery := fmt.Sprintf(`
		SELECT title, description, impact, severity, result, curl_verify
		FROM findings WHERE report_id = %s
		ORDER BY title
	`, s.getPlaceholder(1))

	rows, err := s.db.QueryxContext(ctx, findingQuery, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fr struct {
			Title       string `db:"title"`
			Description string `db:"description"`
			Impact      string `db:"impact"`
			Severity    string `db:"severity"`
			Result      bool   `db:"result"`
			CurlVerify  string `db:"curl_verify"`
		}
		if err := rows.StructScan(&fr); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		report.Audit = append(report.Audit, audit.Finding{
			Title:       fr.Title,
			Description: fr.Description,
			Impact:      fr.Impact,
			Severity:    audit.Severity(fr.Severity),
			Result:      fr.Result,
			CurlVerify:  fr.CurlVerify,
		})
	}

	return report, rows.Err()
}

func (s *sqlStore) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.target, r.engine, r.confidence, r.created_at,
			   COALESCE(SUM(CASE WHEN f.result THEN 1 ELSE 0 END), 0) AS positive_findings,
			   COUNT(f.fingerprint) AS total_findings
		FROM reports r
		LEFT JOIN findings f ON f.report_id = r.id
		GROUP BY r.id, r.target, r.engine, r.confidence, r.created_at
		ORDER BY r.created_at DESC
		LIMIT %s
	`, s.getPlaceholder(1))

	summaries := []ReportSummary{}
	if err := s.db.SelectContext(ctx, &summaries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return summaries, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ddgraph/internal/logging"
)

// Entry is a signal attributed to a company run.
type Entry struct {
	CompanyID string
	RunID     string
	Signal    Signal
}

// Sink records risk entries. Record never blocks the caller on failure; it
// reports success as a bool and logs the error.
type Sink interface {
	Record(ctx context.Context, e Entry) bool
}

type record struct {
	Timestamp   string `json:"timestamp"`
	CompanyID   string `json:"company_id"`
	RunID       string `json:"run_id,omitempty"`
	OccurredOn  string `json:"occurred_on"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	RiskType    string `json:"risk_type"`
	Severity    string `json:"severity"`
}

func toRecord(e Entry, now time.Time) record {
	occurred := e.Signal.OccurredOn
	if occurred == "" {
		occurred = now.Format("2006-01-02")
	}
	return record{
		Timestamp:   now.Format(time.RFC3339Nano),
		CompanyID:   e.CompanyID,
		RunID:       e.RunID,
		OccurredOn:  occurred,
		Description: e.Signal.Description,
		SourceURL:   e.Signal.SourceURL,
		RiskType:    e.Signal.Type,
		Severity:    e.Signal.Severity,
	}
}

// FileSink appends one JSON object per line to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
	log  *logging.Logger
}

// NewFileSink uses data/risk_signals/risk_signals.jsonl under dataDir when path is empty.
func NewFileSink(dataDir, path string) *FileSink {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(dataDir, "risk_signals", "risk_signals.jsonl")
	}
	return &FileSink{path: path, log: logging.GetLogger("risk")}
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Record(_ context.Context, e Entry) bool {
	line, err := json.Marshal(toRecord(e, time.Now().UTC()))
	if err != nil {
		s.log.Warn("encode risk entry: %v", err)
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Warn("create risk log dir: %v", err)
		return false
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("open risk log: %v", err)
		return false
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		s.log.Warn("append risk log: %v", err)
		return false
	}
	return true
}

// PostgresSink inserts entries into the risk_signals table.
type PostgresSink struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
	log        *logging.Logger
}

func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresSinkFromDB(db), nil
}

func NewPostgresSinkFromDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db, log: logging.GetLogger("risk")}
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS risk_signals (
  id BIGSERIAL PRIMARY KEY,
  company_id TEXT NOT NULL,
  run_id TEXT NOT NULL DEFAULT '',
  occurred_on TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  risk_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  logged_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_risk_signals_company_id ON risk_signals (company_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresSink) Record(ctx context.Context, e Entry) bool {
	if err := s.ensureSchema(ctx); err != nil {
		s.log.Warn("risk_signals schema: %v", err)
		return false
	}
	r := toRecord(e, time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO risk_signals (company_id, run_id, occurred_on, description, source_url, risk_type, severity)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.CompanyID, r.RunID, r.OccurredOn, r.Description, r.SourceURL, r.RiskType, r.Severity)
	if err != nil {
		s.log.Warn("insert risk signal: %v", err)
		return false
	}
	return true
}

func (s *PostgresSink) Close() error { return s.db.Close() }

// MultiSink records to every sink and succeeds if any of them did.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, e Entry) bool {
	ok := false
	for _, s := range m {
		if s != nil && s.Record(ctx, e) {
			ok = true
		}
	}
	return ok
}

// NopSink discards entries.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) bool { return true }

package retrieval

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresSearcher runs full text search over a chunks table.
type PostgresSearcher struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresSearcher(dsn string) (*PostgresSearcher, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSearcher{db: db}, nil
}

func NewPostgresSearcherFromDB(db *sql.DB) *PostgresSearcher {
	return &PostgresSearcher{db: db}
}

func (s *PostgresSearcher) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS company_chunks (
	id BIGSERIAL PRIMARY KEY,
	company_id TEXT NOT NULL,
	text TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT '',
	crawled_at TIMESTAMPTZ,
	tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED
);
CREATE INDEX IF NOT EXISTS company_chunks_company_idx ON company_chunks (company_id);
CREATE INDEX IF NOT EXISTS company_chunks_tsv_idx ON company_chunks USING GIN (tsv);
`)
	})
	return s.schemaErr
}

// Insert adds a chunk; used by ingestion jobs and tests.
func (s *PostgresSearcher) Insert(ctx context.Context, companyID string, c Chunk) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	var crawled any
	if t, err := time.Parse(time.RFC3339, c.CrawledAt); err == nil {
		crawled = t
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_chunks (company_id, text, source_url, source_type, crawled_at) VALUES ($1, $2, $3, $4, $5)`,
		companyID, c.Text, c.SourceURL, c.SourceType, crawled)
	return err
}

// Search ranks with ts_rank_cd; a rank r maps to distance 1/r - 1 so
// stronger matches score closer to 1.
func (s *PostgresSearcher) Search(ctx context.Context, companyID, query string, topK int) ([]Chunk, error) {
	if !validQuery(companyID, query, topK) {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT text, source_url, source_type, crawled_at, ts_rank_cd(tsv, q) AS rank
FROM company_chunks, websearch_to_tsquery('english', $2) q
WHERE company_id = $1 AND tsv @@ q
ORDER BY rank DESC, id ASC
LIMIT $3`, strings.TrimSpace(companyID), strings.TrimSpace(query), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c       Chunk
			crawled sql.NullTime
			rank    float64
		)
		if err := rows.Scan(&c.Text, &c.SourceURL, &c.SourceType, &crawled, &rank); err != nil {
			return nil, err
		}
		if crawled.Valid {
			c.CrawledAt = crawled.Time.UTC().Format(time.RFC3339)
		}
		distance := 1.0
		if rank > 0 {
			distance = 1/rank - 1
		}
		c.Score = ScoreFromDistance(distance)
		out = append(out, withDefaults(c))
	}
	return out, rows.Err()
}

func (s *PostgresSearcher) Close() error { return s.db.Close() }

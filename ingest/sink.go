package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crs-prediction-api/models"
)

// Sink appends draws, skipping draw numbers it already holds, and reports
// how many rows were new. store.FileStore and store.GormStore satisfy it.
type Sink interface {
	SaveDraws(ctx context.Context, draws []models.Draw) (int, error)
}

// Column and index names match what gorm's AutoMigrate creates for
// models.Draw, so either side may create the table first.
const drawsSchema = `
CREATE TABLE IF NOT EXISTS crs_draws (
	id                 BIGSERIAL PRIMARY KEY,
	draw_number        TEXT,
	draw_date          TIMESTAMPTZ,
	category           TEXT,
	score              BIGINT,
	invitations_issued BIGINT,
	created_at         TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_crs_draws_draw_number ON crs_draws (draw_number);
CREATE INDEX IF NOT EXISTS idx_crs_draws_draw_date ON crs_draws (draw_date);
CREATE INDEX IF NOT EXISTS idx_crs_draws_category ON crs_draws (category);
`

const insertDraw = `
	INSERT INTO crs_draws (draw_number, draw_date, category, score, invitations_issued, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (draw_number) DO NOTHING
`

// PGXSink writes draws straight into Postgres.
type PGXSink struct {
	pool *pgxpool.Pool
}

func NewPGXSink(ctx context.Context, url string) (*PGXSink, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db pool init: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &PGXSink{pool: pool}, nil
}

func (s *PGXSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, drawsSchema); err != nil {
		return fmt.Errorf("ensure crs_draws: %w", err)
	}
	return nil
}

func (s *PGXSink) SaveDraws(ctx context.Context, draws []models.Draw) (int, error) {
	if len(draws) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, d := range draws {
		batch.Queue(insertDraw, d.Number, d.Date, d.Category, d.Score, d.InvitationsIssued)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	added := 0
	for range draws {
		tag, err := results.Exec()
		if err != nil {
			return added, fmt.Errorf("insert draw: %w", err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (s *PGXSink) Close() {
	s.pool.Close()
}

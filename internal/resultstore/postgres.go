// Package resultstore persists finalized corpus metrics to PostgreSQL so
// evaluation runs can be compared across checkpoints and configurations.
//
// Rates that finalized as undefined (zero reference tokens) are stored as
// SQL NULL, never as a numeric zero.
package resultstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asrlab/recscore/internal/score"
)

const ddlCorpusResults = `
CREATE TABLE IF NOT EXISTS corpus_results (
    id               BIGSERIAL        PRIMARY KEY,
    corpus           TEXT             NOT NULL,
    worker_rank      INT              NOT NULL DEFAULT 0,
    utterances       INT              NOT NULL,
    oov_total        INT              NOT NULL,
    wer              DOUBLE PRECISION,
    cer              DOUBLE PRECISION,
    oracle_wer       DOUBLE PRECISION,
    oracle_hit_rate  DOUBLE PRECISION,
    word_sub         INT              NOT NULL DEFAULT 0,
    word_ins         INT              NOT NULL DEFAULT 0,
    word_del         INT              NOT NULL DEFAULT 0,
    word_ref_tokens  INT              NOT NULL DEFAULT 0,
    char_sub         INT              NOT NULL DEFAULT 0,
    char_ins         INT              NOT NULL DEFAULT 0,
    char_del         INT              NOT NULL DEFAULT 0,
    char_ref_tokens  INT              NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_corpus_results_corpus
    ON corpus_results (corpus, created_at);
`

// Store persists finalized corpus metrics. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the PostgreSQL database at dsn and ensures the
// corpus_results table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("resultstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("resultstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlCorpusResults); err != nil {
		pool.Close()
		return nil, fmt.Errorf("resultstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Run is one persisted corpus pass.
type Run struct {
	// Corpus labels the evaluated corpus (e.g. the manifest path or set
	// name).
	Corpus string

	// Rank is the worker rank that produced the metrics.
	Rank int

	// Metrics are the finalized metrics of the pass.
	Metrics score.Metrics

	// CreatedAt is when the pass finished. The zero value stores as now().
	CreatedAt time.Time
}

// Save inserts one finalized corpus pass and returns its row id.
func (s *Store) Save(ctx context.Context, run Run) (int64, error) {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	m := run.Metrics

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO corpus_results (
			corpus, worker_rank, utterances, oov_total,
			wer, cer, oracle_wer, oracle_hit_rate,
			word_sub, word_ins, word_del, word_ref_tokens,
			char_sub, char_ins, char_del, char_ref_tokens,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		run.Corpus, run.Rank, m.Utterances, m.OOVTotal,
		nullableRate(m.WER()), nullableRate(m.CER()),
		nullableRate(m.OracleWER), nullableRate(m.OracleHitRate),
		m.Word.Sub, m.Word.Ins, m.Word.Del, m.Word.ReferenceTokens,
		m.Char.Sub, m.Char.Ins, m.Char.Del, m.Char.ReferenceTokens,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resultstore: save run for %q: %w", run.Corpus, err)
	}
	return id, nil
}

// Latest returns the most recent persisted run for a corpus, or pgx.ErrNoRows
// wrapped when none exists.
func (s *Store) Latest(ctx context.Context, corpus string) (Run, error) {
	var (
		run                                Run
		wer, cer, oracleWER, oracleHitRate *float64
	)
	run.Corpus = corpus
	err := s.pool.QueryRow(ctx, `
		SELECT worker_rank, utterances, oov_total,
		       wer, cer, oracle_wer, oracle_hit_rate,
		       word_sub, word_ins, word_del, word_ref_tokens,
		       char_sub, char_ins, char_del, char_ref_tokens,
		       created_at
		FROM corpus_results
		WHERE corpus = $1
		ORDER BY created_at DESC
		LIMIT 1`, corpus,
	).Scan(
		&run.Rank, &run.Metrics.Utterances, &run.Metrics.OOVTotal,
		&wer, &cer, &oracleWER, &oracleHitRate,
		&run.Metrics.Word.Sub, &run.Metrics.Word.Ins, &run.Metrics.Word.Del, &run.Metrics.Word.ReferenceTokens,
		&run.Metrics.Char.Sub, &run.Metrics.Char.Ins, &run.Metrics.Char.Del, &run.Metrics.Char.ReferenceTokens,
		&run.CreatedAt,
	)
	if err != nil {
		return Run{}, fmt.Errorf("resultstore: latest run for %q: %w", corpus, err)
	}
	run.Metrics.Word.ErrorRate = rateFromNullable(wer)
	run.Metrics.Char.ErrorRate = rateFromNullable(cer)
	run.Metrics.OracleWER = rateFromNullable(oracleWER)
	run.Metrics.OracleHitRate = rateFromNullable(oracleHitRate)
	return run, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// nullableRate maps an undefined rate to SQL NULL.
func nullableRate(r score.Rate) *float64 {
	if !r.Defined {
		return nil
	}
	return &r.Value
}

func rateFromNullable(v *float64) score.Rate {
	if v == nil {
		return score.Rate{}
	}
	return score.Rate{Value: *v, Defined: true}
}

// Package config provides the typed configuration schema and YAML loader
// for the recscore evaluation engine.
package config

import (
	"log/slog"

	"github.com/asrlab/recscore/pkg/decoder"
)

// LogLevel controls log verbosity for the recscore CLI.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the corresponding slog level. Unrecognised values map to
// info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for a recscore run. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// Manifest is the path to the JSON-lines corpus manifest to score.
	Manifest string `yaml:"manifest"`

	// OutputDir is the directory where ref.trn and hyp.trn are written.
	OutputDir string `yaml:"output_dir"`

	// WorldSize is the number of cooperating worker ranks the corpus is
	// partitioned across. Default: 1.
	WorldSize int `yaml:"world_size"`

	// PostgresDSN, when set, enables persisting finalized corpus metrics
	// to PostgreSQL.
	PostgresDSN string `yaml:"postgres_dsn"`

	// MetricsAddr, when set, is the TCP address a Prometheus /metrics
	// endpoint is served on during the run (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	Evaluation  Evaluation  `yaml:"evaluation"`
	Recognition Recognition `yaml:"recognition"`
}

// Evaluation holds the per-pass evaluation toggles.
type Evaluation struct {
	// Oracle enables oracle WER over the n-best lists. Ignored for
	// utterances with a single hypothesis and in streaming mode.
	Oracle bool `yaml:"oracle"`

	// FineGrained enables length-binned error-rate distributions keyed by
	// a coarse bucketing of the input length.
	FineGrained bool `yaml:"fine_grained"`

	// Streaming selects incremental session-level decoding: single best
	// hypothesis, no n-best, no attention, synthetic frame-range suffix on
	// transcript utterance IDs.
	Streaming bool `yaml:"streaming"`

	// CharStripSpace removes spaces from both texts before character-level
	// scoring, for corpora whose references are not space-segmented.
	CharStripSpace bool `yaml:"char_strip_space"`

	// SubsampleWord and SubsampleChar are the encoder subsampling factors
	// of the word- and character-level decoding paths, forwarded to the
	// unknown-token resolver. Default: 1.
	SubsampleWord int `yaml:"subsample_word"`
	SubsampleChar int `yaml:"subsample_char"`
}

// Recognition enumerates every recognised decoding hyperparameter with its
// default. It is validated at driver construction and forwarded to the
// decoder on every decode call.
type Recognition struct {
	// BeamWidth is the beam search width. Default: 4.
	BeamWidth int `yaml:"beam_width"`

	// LengthPenalty rewards longer hypotheses. Default: 0.
	LengthPenalty float64 `yaml:"length_penalty"`

	// CoveragePenalty penalises concentrated attention mass. Default: 0.
	CoveragePenalty float64 `yaml:"coverage_penalty"`

	// MinLenRatio and MaxLenRatio bound hypothesis length relative to the
	// input length. Defaults: 0 and 1.
	MinLenRatio float64 `yaml:"min_len_ratio"`
	MaxLenRatio float64 `yaml:"max_len_ratio"`

	// LMWeight is the shallow-fusion language model weight. Default: 0.
	LMWeight float64 `yaml:"lm_weight"`

	// ResolvingUNK enables the auxiliary character-level decode that
	// resolves unknown-token markers in the primary hypothesis. Not
	// supported in streaming or block-synchronous mode.
	ResolvingUNK bool `yaml:"resolving_unk"`

	// BlockSync selects block-synchronous (incremental) decoding, which
	// uses the streaming decode path.
	BlockSync bool `yaml:"block_sync"`

	// BatchSize is the number of utterances decoded per batch. Default: 1.
	BatchSize int `yaml:"batch_size"`
}

// DefaultRecognition returns the documented defaults for every recognition
// option.
func DefaultRecognition() Recognition {
	return Recognition{
		BeamWidth:   4,
		MaxLenRatio: 1,
		BatchSize:   1,
	}
}

// Params converts r into the decoder-facing parameter struct.
func (r Recognition) Params() decoder.Params {
	return decoder.Params{
		BeamWidth:       r.BeamWidth,
		LengthPenalty:   r.LengthPenalty,
		CoveragePenalty: r.CoveragePenalty,
		MinLenRatio:     r.MinLenRatio,
		MaxLenRatio:     r.MaxLenRatio,
		LMWeight:        r.LMWeight,
	}
}

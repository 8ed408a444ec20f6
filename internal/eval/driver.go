// Package eval orchestrates one full corpus evaluation pass: it drives the
// external decoder over the corpus source, scores every utterance at word
// and character granularity, optionally applies oracle selection and
// unknown-token resolution, writes transcript files, and finalizes the
// accumulated counts into normalized metrics.
//
// A Driver moves through INIT → RUNNING → FINALIZED per pass. It may run
// multiple independent corpus passes sequentially — each Run uses a fresh
// accumulator and freshly opened transcript files — but never concurrently:
// Run returns an error if a pass is already in flight.
package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/asrlab/recscore/internal/align"
	"github.com/asrlab/recscore/internal/config"
	"github.com/asrlab/recscore/internal/observe"
	"github.com/asrlab/recscore/internal/score"
	"github.com/asrlab/recscore/internal/trn"
	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
)

// defaultBinWidth is the input-length bucket width (in frames) for
// fine-grained error reporting.
const defaultBinWidth = 200

// Config holds the required collaborators and settings for a [Driver].
type Config struct {
	// Decoders are the models under evaluation. Decoders[0] is the primary;
	// any further entries are auxiliary ensemble members handed to the
	// primary's Decode calls.
	Decoders []decoder.Decoder

	// Source yields the corpus shard this driver owns.
	Source corpus.Source

	// Recognition are the decoding hyperparameters forwarded to the
	// decoder. Validated at construction.
	Recognition config.Recognition

	// Evaluation holds the per-pass toggles (oracle, fine-grained,
	// streaming, character handling).
	Evaluation config.Evaluation

	// WordMapper renders word-level token ids as text.
	WordMapper decoder.TokenMapper

	// CharMapper renders character-level token ids as text. Required only
	// when unknown-token resolution is enabled.
	CharMapper decoder.TokenMapper

	// OutputDir is where ref.trn and hyp.trn are written by the writer
	// rank.
	OutputDir string

	// Rank is this driver's rank in a cooperating worker group. Only rank 0
	// performs transcript I/O.
	Rank int
}

// Option is a functional option for configuring a [Driver].
type Option func(*Driver)

// WithLogger sets the logger the driver reports through. Default:
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics sets the metric instruments the driver records to. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithResolver attaches the external unknown-token merge function. Required
// when recognition.resolving_unk is enabled.
func WithResolver(r decoder.Resolver) Option {
	return func(d *Driver) { d.resolver = r }
}

// WithBinWidth overrides the input-length bucket width used for
// fine-grained error reporting. Default: 200.
func WithBinWidth(w int) Option {
	return func(d *Driver) { d.binWidth = w }
}

// Driver runs corpus evaluation passes. Construct with [NewDriver].
type Driver struct {
	decoders   []decoder.Decoder
	source     corpus.Source
	recog      config.Recognition
	eval       config.Evaluation
	wordMapper decoder.TokenMapper
	charMapper decoder.TokenMapper
	outputDir  string
	rank       int

	resolver decoder.Resolver
	logger   *slog.Logger
	metrics  *observe.Metrics
	binWidth int

	mu      sync.Mutex
	running bool
}

// NewDriver validates cfg and the supplied options and returns a Driver in
// its initial state.
func NewDriver(cfg Config, opts ...Option) (*Driver, error) {
	d := &Driver{
		decoders:   cfg.Decoders,
		source:     cfg.Source,
		recog:      cfg.Recognition,
		eval:       cfg.Evaluation,
		wordMapper: cfg.WordMapper,
		charMapper: cfg.CharMapper,
		outputDir:  cfg.OutputDir,
		rank:       cfg.Rank,
		binWidth:   defaultBinWidth,
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}

	var errs []error
	if len(d.decoders) == 0 {
		errs = append(errs, errors.New("at least one decoder is required"))
	}
	if d.source == nil {
		errs = append(errs, errors.New("a corpus source is required"))
	}
	if d.wordMapper == nil {
		errs = append(errs, errors.New("a word-level token mapper is required"))
	}
	if err := config.ValidateRecognition(d.recog); err != nil {
		errs = append(errs, err)
	}
	if d.recog.ResolvingUNK {
		// UNK resolution needs batch-mode attention weights; streaming and
		// block-synchronous decoding cannot provide them.
		if d.eval.Streaming || d.recog.BlockSync {
			errs = append(errs, errors.New("resolving_unk is not supported with streaming or block-synchronous decoding"))
		}
		if d.resolver == nil {
			errs = append(errs, errors.New("resolving_unk requires a resolver; use WithResolver"))
		}
		if d.charMapper == nil {
			errs = append(errs, errors.New("resolving_unk requires a character-level token mapper"))
		}
	}
	if d.binWidth <= 0 {
		errs = append(errs, fmt.Errorf("bin width %d must be positive", d.binWidth))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("eval: invalid driver configuration: %w", err)
	}
	return d, nil
}

// Run performs one full corpus pass and returns the finalized metrics.
//
// Batches are consumed strictly in source order and utterances within a
// batch in list order, so transcript line order and bin population order
// are deterministic. Run returns an error if another pass is already
// running on this driver.
func (d *Driver) Run(ctx context.Context) (score.Metrics, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return score.Metrics{}, errors.New("eval: a corpus pass is already running on this driver")
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.metrics.ActiveEvaluations.Add(ctx, 1)
	defer d.metrics.ActiveEvaluations.Add(ctx, -1)

	acc := score.NewAccumulator()

	writer, err := trn.NewWriter(d.outputDir, d.rank)
	if err != nil {
		d.metrics.RecordStageError(ctx, string(StageWrite))
		return score.Metrics{}, &StageError{Stage: StageWrite, Err: err}
	}

	if err := d.source.Reset(d.recog.BatchSize, corpus.OrderSequential); err != nil {
		writer.Close()
		return score.Metrics{}, fmt.Errorf("eval: reset source: %w", err)
	}

	runErr := d.runPass(ctx, acc, writer)

	if cerr := writer.Close(); cerr != nil && runErr == nil {
		d.metrics.RecordStageError(ctx, string(StageWrite))
		runErr = &StageError{Stage: StageWrite, Err: cerr}
	}
	if runErr != nil {
		return score.Metrics{}, runErr
	}

	// Rewind the source so a later pass can reuse it.
	if err := d.source.Reset(d.recog.BatchSize, corpus.OrderSequential); err != nil {
		return score.Metrics{}, fmt.Errorf("eval: reset source after pass: %w", err)
	}

	metrics, err := acc.Finalize()
	if err != nil {
		return score.Metrics{}, fmt.Errorf("eval: finalize: %w", err)
	}
	d.logFinalized(metrics)
	return metrics, nil
}

// runPass consumes every batch from the source, scoring and writing each
// utterance.
func (d *Driver) runPass(ctx context.Context, acc *score.Accumulator, writer *trn.Writer) error {
	streamingDecode := d.eval.Streaming || d.recog.BlockSync
	params := d.recog.Params()

	for {
		batch, err := d.source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("eval: next batch: %w", err)
		}

		nbests, err := d.decodeBatch(ctx, batch, params, streamingDecode)
		if err != nil {
			d.metrics.RecordStageError(ctx, string(StageDecode))
			return &StageError{Stage: StageDecode, UttID: batch[0].ID, Err: err}
		}

		for i, utt := range batch {
			if err := d.scoreUtterance(ctx, acc, writer, utt, nbests[i]); err != nil {
				return err
			}
		}
	}
}

// decodeBatch invokes the external decoder in the configured mode and
// normalises the result to one n-best list per utterance.
func (d *Driver) decodeBatch(ctx context.Context, batch []corpus.Utterance, params decoder.Params, streaming bool) ([]decoder.NBest, error) {
	primary := d.decoders[0]
	mode := "batch"
	if streaming {
		mode = "streaming"
	}

	start := time.Now()
	var nbests []decoder.NBest
	var err error
	if streaming {
		var best []decoder.Hypothesis
		best, err = primary.DecodeStreaming(ctx, batch, params)
		if err == nil {
			nbests = make([]decoder.NBest, len(best))
			for i, h := range best {
				nbests[i] = decoder.NBest{h}
			}
		}
	} else {
		nbests, err = primary.Decode(ctx, batch, params, decoder.Word, d.decoders[1:])
	}
	d.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("mode", mode)),
	)
	if err != nil {
		return nil, err
	}
	if len(nbests) != len(batch) {
		return nil, fmt.Errorf("decoder returned %d hypothesis lists for %d utterances", len(nbests), len(batch))
	}
	return nbests, nil
}

// scoreUtterance scores one utterance: OOV counting, optional unknown-token
// resolution, transcript writing, word- and character-level accumulation,
// and the optional oracle and fine-grained updates.
func (d *Driver) scoreUtterance(ctx context.Context, acc *score.Accumulator, writer *trn.Writer, utt corpus.Utterance, nbest decoder.NBest) error {
	if len(nbest) == 0 {
		d.metrics.RecordStageError(ctx, string(StageDecode))
		return &StageError{Stage: StageDecode, UttID: utt.ID, Err: errors.New("decoder returned an empty n-best list")}
	}

	hyps := make([]string, len(nbest))
	for n, h := range nbest {
		hyps[n] = d.wordMapper(h.IDs)
	}

	// OOV markers are counted on the unresolved primary hypothesis.
	oov := strings.Count(hyps[0], UnknownMarker)
	if err := acc.AddOOV(oov); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	if oov > 0 {
		d.metrics.OOVTokens.Add(ctx, int64(oov))
	}

	if d.recog.ResolvingUNK && strings.Contains(hyps[0], UnknownMarker) {
		resolved, err := d.resolveUnknown(ctx, utt, nbest[0], hyps[0])
		if err != nil {
			// Isolate the failure: fall back to scoring the unresolved
			// hypothesis for this utterance only.
			d.logger.Warn("unknown-token resolution failed; scoring unresolved hypothesis",
				"utt_id", utt.ID, "err", err)
			d.metrics.RecordStageError(ctx, string(StageMerge))
			d.metrics.RecordUNKResolution(ctx, "fallback")
		} else {
			hyps[0] = resolved
			d.metrics.RecordUNKResolution(ctx, "ok")
		}
	}

	if err := writer.Append(utt.Reference, hyps[0], utt.Speaker, utt.ID, d.eval.Streaming); err != nil {
		d.metrics.RecordStageError(ctx, string(StageWrite))
		return &StageError{Stage: StageWrite, UttID: utt.ID, Err: err}
	}

	// Word granularity.
	refWords := align.Words(utt.Reference)
	wordRes := align.Align(refWords, align.Words(hyps[0]))
	if err := acc.Update(decoder.Word, wordRes, len(refWords)); err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	// Character granularity.
	refChar, hypChar := utt.Reference, hyps[0]
	if d.eval.CharStripSpace {
		refChar = strings.ReplaceAll(refChar, " ", "")
		hypChar = strings.ReplaceAll(hypChar, " ", "")
	}
	refChars := align.Chars(refChar)
	charRes := align.Align(refChars, align.Chars(hypChar))
	if err := acc.Update(decoder.Char, charRes, len(refChars)); err != nil {
		return fmt.Errorf("eval: %w", err)
	}

	if d.eval.Oracle && !d.eval.Streaming && len(hyps) > 1 {
		cands := make([][]string, len(hyps))
		for n, h := range hyps {
			cands[n] = align.Words(h)
		}
		_, oracleErrs, hit := align.Oracle(refWords, cands)
		if err := acc.UpdateOracle(oracleErrs, hit); err != nil {
			return fmt.Errorf("eval: %w", err)
		}
	}

	if d.eval.FineGrained {
		bin := (utt.InputLength/d.binWidth + 1) * d.binWidth
		var frac float64
		if len(refWords) > 0 {
			frac = float64(wordRes.Total) / float64(len(refWords))
		}
		if err := acc.UpdateBin(bin, frac); err != nil {
			return fmt.Errorf("eval: %w", err)
		}
	}

	if err := acc.AddUtterances(1); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	d.metrics.UtterancesScored.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("rank", d.rank)),
	)

	d.logger.Debug("scored utterance",
		"utt_id", utt.ID,
		"ref", utt.Reference,
		"hyp", hyps[0],
		"word_errors", wordRes.Total,
	)
	return nil
}

// logFinalized reports the finalized metrics at info level.
func (d *Driver) logFinalized(m score.Metrics) {
	attrs := []any{
		"rank", d.rank,
		"utterances", m.Utterances,
		"oov_total", m.OOVTotal,
	}
	if m.WER().Defined {
		attrs = append(attrs, "wer", m.WER().Value)
	}
	if m.CER().Defined {
		attrs = append(attrs, "cer", m.CER().Value)
	}
	if m.OracleWER.Defined {
		attrs = append(attrs, "oracle_wer", m.OracleWER.Value)
	}
	if m.OracleHitRate.Defined {
		attrs = append(attrs, "oracle_hit_rate", m.OracleHitRate.Value)
	}
	d.logger.Info("corpus pass finalized", attrs...)
}

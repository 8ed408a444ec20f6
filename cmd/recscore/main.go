// Command recscore scores recognition output dumps against their reference
// transcripts: it computes WER/CER (plus oracle and length-binned
// distributions when enabled), writes ref.trn/hyp.trn transcript files, and
// optionally persists the finalized metrics to PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/asrlab/recscore/internal/config"
	"github.com/asrlab/recscore/internal/eval"
	"github.com/asrlab/recscore/internal/observe"
	"github.com/asrlab/recscore/internal/resultstore"
	"github.com/asrlab/recscore/internal/score"
	"github.com/asrlab/recscore/pkg/corpus"
	"github.com/asrlab/recscore/pkg/decoder"
	"github.com/asrlab/recscore/pkg/decoder/replay"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "recscore.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "recscore: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "recscore: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("recscore starting",
		"config", *configPath,
		"manifest", cfg.Manifest,
		"output_dir", cfg.OutputDir,
		"world_size", cfg.WorldSize,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Metrics endpoint ──────────────────────────────────────────────────────
	// The OTel Prometheus exporter feeds the default registry; serve it when
	// an address is configured.
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				slog.Warn("metrics server shutdown error", "err", err)
			}
		}()
	}

	// ── Corpus and replay decoder ─────────────────────────────────────────────
	utts, err := corpus.LoadManifest(cfg.Manifest)
	if err != nil {
		slog.Error("failed to load corpus manifest", "err", err)
		return 1
	}
	if len(utts) == 0 {
		slog.Error("corpus manifest contains no utterances", "manifest", cfg.Manifest)
		return 1
	}
	dec := replay.New(utts)

	// ── Rank-partitioned evaluation ───────────────────────────────────────────
	// Each rank runs its own driver over a disjoint shard; only rank 0 owns
	// the transcript files. Cross-rank reduction is the caller's business —
	// per-rank metrics are reported individually.
	results := make([]score.Metrics, cfg.WorldSize)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < cfg.WorldSize; rank++ {
		shard := corpus.Shard(utts, rank, cfg.WorldSize)
		driver, err := eval.NewDriver(eval.Config{
			Decoders:    []decoder.Decoder{dec},
			Source:      corpus.NewSliceSource(shard),
			Recognition: cfg.Recognition,
			Evaluation:  cfg.Evaluation,
			WordMapper:  dec.WordMapper(),
			CharMapper:  dec.CharMapper(),
			OutputDir:   cfg.OutputDir,
			Rank:        rank,
		}, eval.WithLogger(logger.With("rank", rank)))
		if err != nil {
			slog.Error("failed to construct evaluation driver", "rank", rank, "err", err)
			return 1
		}
		g.Go(func() error {
			m, err := driver.Run(gctx)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			results[rank] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("evaluation failed", "err", err)
		return 1
	}

	printMetrics(results[0])

	// ── Optional persistence ──────────────────────────────────────────────────
	if cfg.PostgresDSN != "" {
		store, err := resultstore.New(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to open result store", "err", err)
			return 1
		}
		defer store.Close()
		for rank, m := range results {
			id, err := store.Save(ctx, resultstore.Run{
				Corpus:  cfg.Manifest,
				Rank:    rank,
				Metrics: m,
			})
			if err != nil {
				slog.Error("failed to persist metrics", "rank", rank, "err", err)
				return 1
			}
			slog.Info("metrics persisted", "rank", rank, "row_id", id)
		}
	}

	return 0
}

// printMetrics writes the finalized rank-0 metrics to stdout.
func printMetrics(m score.Metrics) {
	fmt.Printf("utterances: %d\n", m.Utterances)
	fmt.Printf("oov total:  %d\n", m.OOVTotal)
	printRate("WER", m.WER())
	printOps("  word", m.Word)
	printRate("CER", m.CER())
	printOps("  char", m.Char)
	if m.OracleWER.Defined {
		printRate("oracle WER", m.OracleWER)
	}
	if m.OracleHitRate.Defined {
		printRate("oracle hit rate", m.OracleHitRate)
	}
	for _, b := range m.Bins {
		fmt.Printf("bin %6d: %.2f %% (%d utterances)\n", b.Bin, b.Mean*100, b.Count)
	}
}

func printRate(name string, r score.Rate) {
	if !r.Defined {
		fmt.Printf("%s: undefined (no reference tokens)\n", name)
		return
	}
	fmt.Printf("%s: %.2f %%\n", name, r.Value*100)
}

func printOps(name string, g score.GranularityMetrics) {
	if !g.SubRate.Defined {
		return
	}
	fmt.Printf("%s SUB: %.2f %% / INS: %.2f %% / DEL: %.2f %%\n",
		name, g.SubRate.Value*100, g.InsRate.Value*100, g.DelRate.Value*100)
}

func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.Level(),
	}))
}

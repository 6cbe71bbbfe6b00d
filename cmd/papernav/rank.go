package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papernavigator/papernav/infrastructure/middleware"
	"github.com/papernavigator/papernav/internal/candidates"
	"github.com/papernavigator/papernav/internal/config"
	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
	"github.com/papernavigator/papernav/internal/results"
	"github.com/papernavigator/papernav/internal/tournament"
)

type rankOptions struct {
	Input     string
	Query     string
	OutputDir string
	Format    string
	Top       int
	// TitleSimilarity drops near-duplicate titles; zero disables it.
	TitleSimilarity float64
}

var rankOpts rankOptions

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank a candidate pool with an ELO tournament",
	Example: "  papernav rank --input snowball.json --output-dir results/\n" +
		"  papernav rank -i pool.yaml -q \"sparse attention\" --pairing random --format table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlagOverrides(cmd, cfg); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runRank(ctx, cmd.OutOrStdout(), cfg, rankOpts, zap.L())
	},
}

func init() {
	f := rankCmd.Flags()
	f.StringVarP(&rankOpts.Input, "input", "i", "", "candidate file (JSON or YAML)")
	f.StringVarP(&rankOpts.Query, "query", "q", "", "research query (defaults to the query stored in the input file)")
	f.StringVarP(&rankOpts.OutputDir, "output-dir", "o", "", "directory for the ranking file; stdout when empty")
	f.StringVar(&rankOpts.Format, "format", "json", "output format: json, yaml or table")
	f.IntVar(&rankOpts.Top, "top", 0, "only export the top N papers (0 exports all)")
	f.Float64Var(&rankOpts.TitleSimilarity, "dedupe-similarity", candidates.DefaultDedupeOptions().TitleSimilarity,
		"drop papers whose titles are at least this similar to an earlier one (0 disables)")

	f.Float64("k-factor", domain.DefaultKFactor, "ELO K factor")
	f.Int("max-rounds", domain.DefaultMaxRounds, "maximum number of rounds")
	f.String("pairing", string(domain.PairingSwiss), "pairing strategy: swiss or random")
	f.Int("calibration-rounds", 0, "random rounds played before the configured pairing")
	f.Int("concurrency", domain.DefaultConcurrency, "concurrent judge calls")
	f.Int64("seed", 0, "seed for random pairing (0 picks one)")
	f.String("provider", "", "LLM provider: openai, anthropic or google")
	f.String("model", "", "LLM model name")
	f.Bool("position-swap", false, "judge every pair in both orders")
	f.Int("max-calls", 0, "cap on judge calls for the run (0 is unlimited)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")

	_ = rankCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(rankCmd)
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("k-factor", func() (e error) { c.Tournament.KFactor, e = f.GetFloat64("k-factor"); return })
	set("max-rounds", func() (e error) { c.Tournament.MaxRounds, e = f.GetInt("max-rounds"); return })
	set("pairing", func() error {
		p, e := f.GetString("pairing")
		c.Tournament.Pairing = domain.PairingKind(p)
		return e
	})
	set("calibration-rounds", func() (e error) {
		c.Tournament.CalibrationRounds, e = f.GetInt("calibration-rounds")
		return
	})
	set("concurrency", func() (e error) { c.Tournament.Concurrency, e = f.GetInt("concurrency"); return })
	set("seed", func() (e error) { c.Tournament.Seed, e = f.GetInt64("seed"); return })
	set("provider", func() (e error) { c.LLM.Provider, e = f.GetString("provider"); return })
	set("model", func() (e error) { c.LLM.Model, e = f.GetString("model"); return })
	set("position-swap", func() (e error) { c.Judge.PositionSwap, e = f.GetBool("position-swap"); return })
	set("max-calls", func() (e error) { c.Judge.MaxCalls, e = f.GetInt("max-calls"); return })
	set("metrics-addr", func() error {
		addr, e := f.GetString("metrics-addr")
		c.Metrics.Addr = addr
		c.Metrics.Enabled = addr != ""
		return e
	})
	if err != nil {
		return err
	}
	return c.Validate()
}

func runRank(ctx context.Context, out io.Writer, c *config.Config, opts rankOptions, logger *zap.Logger) error {
	format, err := results.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	file, err := candidates.Load(opts.Input)
	if err != nil {
		return err
	}
	query := opts.Query
	if query == "" {
		query = file.Query
	}
	if query == "" {
		return errors.New("no query given and the input file does not carry one")
	}

	dedupe := candidates.DefaultDedupeOptions()
	dedupe.TitleSimilarity = opts.TitleSimilarity
	papers, dropped := candidates.Dedupe(file.Papers, dedupe)
	for _, d := range dropped {
		logger.Warn("duplicate candidate dropped",
			zap.String("paper_id", d.Paper.ID),
			zap.String("kept_id", d.KeptID),
			zap.String("kind", string(d.Kind)),
			zap.Float64("similarity", d.Similarity))
	}

	var metrics ports.MetricsCollector
	observers := ports.MultiObserver{middleware.NewLoggingObserver(logger, c.Tournament.LeaderboardSize)}
	if c.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pm := middleware.NewPrometheusMetrics(reg)
		metrics = pm
		observers = append(observers, middleware.NewMetricsObserver(pm))
		srv := startMetricsServer(c.Metrics.Addr, reg, logger)
		defer srv.Stop()
	}

	client, err := newLLMClient(c.LLM, metrics)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	comparator, budget, err := buildComparator(c, client, logger, metrics)
	if err != nil {
		return fmt.Errorf("create judge: %w", err)
	}

	t, err := tournament.New(c.Tournament, comparator,
		tournament.WithLogger(logger),
		tournament.WithObserver(observers),
		tournament.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	logger.Info("ranking candidates",
		zap.String("query", query),
		zap.Int("papers", len(papers)),
		zap.String("model", client.GetModel()))
	res, runErr := t.Run(ctx, papers, query)
	if budget != nil {
		logger.Info("judge budget", zap.Int("used", budget.Used()), zap.Int("rejected", budget.Rejected()))
	}
	if res == nil {
		return runErr
	}

	report := results.Build(res, opts.Top)
	if opts.OutputDir == "" {
		if err := results.Write(out, report, format); err != nil {
			return err
		}
		return runErr
	}
	path, err := results.Save(opts.OutputDir, report, results.Filename(c.Tournament, format), format)
	if err != nil {
		return err
	}
	logger.Info("ranking written", zap.String("path", path))
	fmt.Fprintln(out, path)
	return runErr
}

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"

	"github.com/sttbench/sttbench/pkg/assets"
	"github.com/sttbench/sttbench/pkg/bench"
	"github.com/sttbench/sttbench/pkg/config"
	"github.com/sttbench/sttbench/pkg/logging"
	"github.com/sttbench/sttbench/pkg/metrics"
	"github.com/sttbench/sttbench/pkg/redact"
	"github.com/sttbench/sttbench/pkg/report"
	"github.com/sttbench/sttbench/pkg/score"
	"github.com/sttbench/sttbench/pkg/semantic"
)

const engineVersion = "dev"

func printBanner() {
	tpl := "{{ .Title \"STTBENCH\" \"\" 0 }}\nVersion: " + engineVersion + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the benchmark config")
	assetsDir := flag.String("assets", "", "override assets directory")
	logLevel := flag.String("log_level", "", "override log level")
	flag.Parse()

	// A local .env is a convenience for development; deployments export
	// the credentials directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	if *assetsDir != "" {
		cfg.AssetsDir = *assetsDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	redact.SetEnabled(cfg.RedactTranscripts)

	printBanner()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pairs, err := assets.Discover(cfg.AssetsDir)
	if err != nil {
		logger.Error("asset discovery failed", slog.String("error", err.Error()))
		return 1
	}
	if len(pairs) == 0 {
		logger.Error("no wav assets found", slog.String("dir", cfg.AssetsDir))
		return 1
	}
	logger.Info("assets discovered", slog.Int("count", len(pairs)))

	var extractor score.FactExtractor
	if cfg.Semantic.Enabled {
		ex, err := semantic.NewExtractor(semantic.Config{
			APIKey:  cfg.Semantic.APIKey(),
			Model:   cfg.Semantic.Model,
			BaseURL: cfg.Semantic.BaseURL,
		}, logger)
		if err != nil {
			logger.Warn("semantic scoring disabled", slog.String("error", err.Error()))
		} else {
			extractor = ex
		}
	}
	scorer := score.NewScorer(extractor, logger)

	ts := report.Timestamp(time.Now())
	obs, closeObs, err := buildObserver(cfg.ReportDir, ts, logger)
	if err != nil {
		logger.Error("metrics artifact", slog.String("error", err.Error()))
		return 1
	}
	defer closeObs()

	specs := bench.BuildSpecs(cfg, obs, logger)
	if len(specs) == 0 {
		logger.Error("no providers available, nothing to benchmark")
		return 1
	}

	runner, err := bench.NewRunner(cfg, scorer, obs, logger)
	if err != nil {
		logger.Error("runner init failed", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("benchmark starting",
		slog.Int("providers", len(specs)),
		slog.Int("assets", len(pairs)),
		slog.String("language", cfg.Language))

	outcomes := runner.Run(ctx, specs, pairs)

	tsvPath, err := report.SaveTSV(cfg.ReportDir, ts, outcomes)
	if err != nil {
		logger.Error("tsv artifact", slog.String("error", err.Error()))
		return 1
	}
	htmlPath, err := report.SaveHTML(cfg.ReportDir, ts, outcomes)
	if err != nil {
		logger.Error("html artifact", slog.String("error", err.Error()))
		return 1
	}

	printSummary(os.Stdout, outcomes)
	logger.Info("artifacts written",
		slog.String("tsv", tsvPath),
		slog.String("html", htmlPath))

	if ctx.Err() != nil {
		logger.Warn("benchmark interrupted")
		return 1
	}
	return 0
}

// buildObserver wires the JSONL event stream behind an async fan-in so
// session goroutines never block on artifact IO.
func buildObserver(dir, ts string, logger *slog.Logger) (metrics.Observer, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(filepath.Join(dir, ts+"_events.jsonl"))
	if err != nil {
		return nil, nil, err
	}
	async := metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 256)
	closeFn := func() {
		async.Close()
		if dropped := async.Dropped(); dropped > 0 {
			logger.Warn("metrics events dropped", slog.Int64("dropped", dropped))
		}
		f.Close()
	}
	return async, closeFn, nil
}

func printSummary(w io.Writer, outcomes []bench.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tFILE\tCER%\tWER%\tSER%\tSTATUS")
	for _, o := range outcomes {
		cer, wer, ser := "-", "-", "-"
		if o.Scored {
			cer = fmt.Sprintf("%.1f", o.Report.CER)
			wer = fmt.Sprintf("%.1f", o.Report.WER)
			if o.Report.Semantic != nil {
				ser = fmt.Sprintf("%.1f", o.Report.Semantic.SER)
			}
		}
		status := "ok"
		switch {
		case o.Err != nil:
			status = "failed: " + o.Err.Error()
		case o.Result.Incomplete:
			status = "incomplete"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", o.Provider, o.Asset, cer, wer, ser, status)
	}
	tw.Flush()
}

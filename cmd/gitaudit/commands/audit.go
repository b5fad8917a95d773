// Package commands implements CLI command handlers for gitaudit.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ukbb-tools/gitaudit/internal/aggregate"
	"github.com/ukbb-tools/gitaudit/internal/checkpoint"
	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/config"
	"github.com/ukbb-tools/gitaudit/internal/engine"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/observability"
	"github.com/ukbb-tools/gitaudit/internal/report"
	"github.com/ukbb-tools/gitaudit/internal/source"
)

// ErrNoTarget is returned when neither a path argument, --url, nor --batch
// is given.
var ErrNoTarget = errors.New("no repository given: pass a path, --url, or --batch")

// metricsShutdownTimeout bounds how long the metrics listener may take to
// drain on exit.
const metricsShutdownTimeout = 2 * time.Second

// AuditCommand holds the flags for the audit command.
type AuditCommand struct {
	configPath string
	url        string
	batch      string
	workDir    string
	outputDir  string
	ruleset    string
	workers    int
	policy     string

	checkpointDir string
	resume        bool

	metricsAddr string
	verbose     bool
	noColor     bool
}

// NewAuditCommand creates and configures the audit command.
func NewAuditCommand() *cobra.Command {
	cmd := &AuditCommand{}

	cobraCmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Scan a repository's full history for sensitive identifiers",
		Long: `Audit walks every commit reachable from any ref, including content
that was later deleted or renamed, and reports where sensitive
identifiers appear and how often.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cmd.Run,
	}

	flags := cobraCmd.Flags()
	flags.StringVarP(&cmd.configPath, "config", "c", "", "config file (default: .gitaudit.yaml)")
	flags.StringVar(&cmd.url, "url", "", "repository URL to clone and audit")
	flags.StringVar(&cmd.batch, "batch", "", "CSV file of repository URLs, one per row")
	flags.StringVar(&cmd.workDir, "work-dir", "repos", "directory for clones")
	flags.StringVarP(&cmd.outputDir, "output", "o", "", "report output directory")
	flags.StringVar(&cmd.ruleset, "ruleset", "", "YAML ruleset file (default: built-in rules)")
	flags.IntVarP(&cmd.workers, "workers", "w", 0, "classification workers (0 = all CPUs)")
	flags.StringVar(&cmd.policy, "truncated-policy", "", "truncated scan weighting: count_full, count_partial, exclude")
	flags.StringVar(&cmd.checkpointDir, "checkpoint-dir", "", "directory for scan cache snapshots")
	flags.BoolVar(&cmd.resume, "resume", false, "restore the scan cache from a prior snapshot")
	flags.StringVar(&cmd.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.BoolVarP(&cmd.verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVar(&cmd.noColor, "no-color", false, "disable colored output")

	return cobraCmd
}

// Run executes the audit command.
func (c *AuditCommand) Run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	c.applyOverrides(cfg)

	logger := newLogger(c.verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, shutdownMetrics, err := setupMetrics(cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	ruleset, err := loadRuleset(cfg.RulesetPath)
	if err != nil {
		return err
	}

	classifier := classify.NewEngine(ruleset, classify.Options{
		MaxScanSize: cfg.Engine.MaxScanSize,
		SkipBinary:  cfg.Engine.SkipBinary,
	})

	targets, err := c.resolveTargets(args, logger)
	if err != nil {
		return err
	}
	defer freeTargets(targets)

	var runErrs []error

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			runErrs = append(runErrs, err)

			break
		}

		auditErr := c.auditOne(ctx, cfg, target, classifier, logger, metrics)
		if auditErr != nil {
			logger.Error("audit failed", "repo", target.Name, "err", auditErr)
			runErrs = append(runErrs, fmt.Errorf("%s: %w", target.Name, auditErr))
		}
	}

	return errors.Join(runErrs...)
}

// freeTargets releases every resolved repository, including targets a
// cancelled batch never reached.
func freeTargets(targets []source.Target) {
	for _, target := range targets {
		if target.Repo != nil {
			target.Repo.Free()
		}
	}
}

// auditOne runs the engine against a single repository and writes its
// reports.
func (c *AuditCommand) auditOne(
	ctx context.Context,
	cfg *config.Config,
	target source.Target,
	classifier *classify.Engine,
	logger *slog.Logger,
	metrics *observability.Metrics,
) error {
	target.Repo.SetReadAttempts(cfg.Engine.ReadAttempts)

	store := history.NewGitStore(target.Repo)

	eng := engine.New(store, classifier, logger, metrics, engine.Options{
		Workers:         cfg.Engine.Workers,
		TruncatedPolicy: aggregate.TruncatedPolicy(cfg.Engine.TruncatedPolicy),
		RepoPath:        target.Name,
	})

	var ckpt *checkpoint.Store
	if c.checkpointDir != "" {
		ckpt = checkpoint.NewStore(c.checkpointDir)

		if c.resume {
			loaded, loadErr := ckpt.Load(target.Name, eng.Cache())
			if loadErr != nil {
				logger.Warn("checkpoint restore failed, starting cold", "err", loadErr)
			} else if loaded {
				logger.Info("scan cache restored", "entries", eng.Cache().Len())
			}
		}
	}

	rep, runErr := eng.Run(ctx)
	if rep == nil {
		return runErr
	}

	if ckpt != nil {
		if saveErr := ckpt.Save(target.Name, eng.Cache()); saveErr != nil {
			logger.Warn("checkpoint save failed", "err", saveErr)
		}
	}

	files, writeErr := report.WriteFiles(cfg.Output.Dir, rep)
	if writeErr != nil {
		return errors.Join(runErr, writeErr)
	}

	report.WriteSummary(os.Stdout, rep, cfg.Output.NoColor)

	logger.Info("reports written",
		"audit", files.Audit, "frequency", files.Frequency)

	return runErr
}

// resolveTargets turns the path argument, --url, or --batch into concrete
// repositories, cloning where needed.
func (c *AuditCommand) resolveTargets(args []string, logger *slog.Logger) ([]source.Target, error) {
	resolver := &source.Resolver{WorkDir: c.workDir, Logger: logger}

	switch {
	case c.batch != "":
		file, err := os.Open(c.batch)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer file.Close()

		urls, err := source.URLsFromCSV(file)
		if err != nil {
			return nil, err
		}

		targets := make([]source.Target, 0, len(urls))

		for _, url := range urls {
			target, resolveErr := resolver.FromURL(url)
			if resolveErr != nil {
				logger.Error("skipping unreachable repository", "url", url, "err", resolveErr)

				continue
			}

			targets = append(targets, target)
		}

		if len(targets) == 0 {
			return nil, source.ErrNoTargets
		}

		return targets, nil

	case c.url != "":
		target, err := resolver.FromURL(c.url)
		if err != nil {
			return nil, err
		}

		return []source.Target{target}, nil

	case len(args) > 0:
		target, err := resolver.FromPath(args[0])
		if err != nil {
			return nil, err
		}

		return []source.Target{target}, nil

	default:
		return nil, ErrNoTarget
	}
}

// applyOverrides lets flags win over file and environment settings.
func (c *AuditCommand) applyOverrides(cfg *config.Config) {
	if c.workers > 0 {
		cfg.Engine.Workers = c.workers
	}

	if c.policy != "" {
		cfg.Engine.TruncatedPolicy = c.policy
	}

	if c.outputDir != "" {
		cfg.Output.Dir = c.outputDir
	}

	if c.ruleset != "" {
		cfg.RulesetPath = c.ruleset
	}

	if c.metricsAddr != "" {
		cfg.MetricsAddr = c.metricsAddr
	}

	if c.noColor {
		cfg.Output.NoColor = true
	}
}

func loadRuleset(path string) (*classify.Ruleset, error) {
	if path == "" {
		return classify.DefaultRuleset(), nil
	}

	return classify.LoadRuleset(path)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setupMetrics starts the Prometheus listener when an address is
// configured, otherwise returns no-op instruments.
func setupMetrics(addr string, logger *slog.Logger) (*observability.Metrics, func(), error) {
	if addr == "" {
		return observability.NewNoopMetrics(), func() {}, nil
	}

	meter, handler, err := observability.PrometheusMeter()
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.NewMetrics(meter)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: metricsShutdownTimeout}

	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "addr", addr, "err", serveErr)
		}
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}

	return metrics, shutdown, nil
}

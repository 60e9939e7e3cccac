package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/config"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/controller"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns/memory"
	_ "github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/metrics"
)

var Version = "dev"

type options struct {
	configPath string
	csvPath    string
	listName   string
	onError    string
	batchSize  int
	dryRun     bool
	devel      bool
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "yk-blocklist-sync",
		Short:         "Replace a DNS security destination list with the hostnames of a CSV feed",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			zl, err := newZapLogger(opts.devel, opts.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, zapr.NewLogger(zl), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to the sync config (default $BLOCKLIST_SYNC_CONFIG or configs/blocklist-sync.yaml)")
	f.StringVar(&opts.csvPath, "csv", "", "CSV import file, overrides import.path")
	f.StringVar(&opts.listName, "list-name", "", "destination list name, overrides list.name")
	f.StringVar(&opts.onError, "on-error", "", "stage failure policy: continue or abort, overrides sync.on_error")
	f.IntVar(&opts.batchSize, "batch-size", 0, "hostnames per request, overrides sync.batch_size")
	f.BoolVar(&opts.dryRun, "dry-run", false, "run against an in-memory list instead of the configured provider")
	f.BoolVar(&opts.devel, "zap-devel", false, "development logging (console encoder, debug level)")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info or error")
	return cmd
}

func newZapLogger(devel bool, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if devel {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

func loadConfig(opts *options) (*config.SyncConfig, error) {
	var (
		cfg *config.SyncConfig
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadSyncConfigFromPath(opts.configPath)
	} else {
		cfg, err = config.LoadSyncConfig()
	}
	if err != nil {
		return nil, err
	}

	if opts.csvPath != "" {
		cfg.Import.Path = opts.csvPath
	}
	if opts.listName != "" {
		cfg.List.Name = opts.listName
	}
	if opts.onError != "" {
		cfg.Sync.OnError = opts.onError
	}
	if opts.batchSize != 0 {
		cfg.Sync.BatchSize = opts.batchSize
	}
	if opts.dryRun {
		cfg.Provider = "memory"
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, log logr.Logger, opts *options) error {
	setupLog := log.WithName("setup")
	setupLog.Info("starting yk-blocklist-sync", "version", Version)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("unable to load sync config: %w", err)
	}
	setupLog.Info("loaded sync config", "provider", cfg.Provider, "list", cfg.List.Name)

	entries, err := config.LoadHostnames(cfg.Import.Path, cfg.Import.Column)
	if err != nil {
		return fmt.Errorf("unable to load import: %w", err)
	}
	hostnames := controller.PrepareHostnames(log.WithName("import"), entries, cfg.Import)
	setupLog.Info("loaded import", "path", cfg.Import.Path, "rows", len(entries), "hostnames", len(hostnames))

	listSpec := dns.ListSpec{
		Name:         cfg.List.Name,
		Access:       cfg.List.Access,
		BundleTypeID: cfg.List.BundleTypeID,
		IsGlobal:     cfg.List.IsGlobal,
	}

	provider, err := dns.NewProvider(cfg.Provider, log.WithName("dns-"+cfg.Provider), cfg.Settings)
	if err != nil {
		return fmt.Errorf("unable to create destination list provider: %w", err)
	}
	if mp, ok := provider.(*memory.Provider); ok && opts.dryRun {
		mp.Seed(listSpec)
		setupLog.Info("dry run, no changes are sent to the service")
	}

	rec := metrics.New()
	if o, ok := provider.(dns.Observable); ok {
		o.SetObserver(rec)
	}

	reconciler := &controller.BlocklistReconciler{
		Log:       log.WithName("blocklist-controller"),
		DNS:       provider,
		List:      listSpec,
		OnError:   cfg.Sync.OnError,
		BatchSize: cfg.Sync.BatchSize,
		Metrics:   rec,
	}
	report := reconciler.Reconcile(ctx, hostnames)
	fmt.Fprint(os.Stdout, controller.FormatReport(report))

	if cfg.Metrics.PushgatewayURL != "" {
		if err := rec.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			setupLog.Error(err, "unable to push metrics", "url", cfg.Metrics.PushgatewayURL)
		}
	}

	if !report.Succeeded() {
		if err := report.Err(); err != nil {
			return fmt.Errorf("blocklist sync incomplete: %w", err)
		}
		return fmt.Errorf("blocklist sync incomplete: %d of %d destinations added", report.Added, report.Total)
	}
	return nil
}

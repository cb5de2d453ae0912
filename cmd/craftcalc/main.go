// Package main is the entry point for craftcalc.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/craftcalc/business/crafting"
	"github.com/fd1az/craftcalc/business/crafting/app"
	craftingDI "github.com/fd1az/craftcalc/business/crafting/di"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/business/crafting/infra/pricefeed"
	"github.com/fd1az/craftcalc/business/crafting/infra/reporter"
	"github.com/fd1az/craftcalc/internal/apm"
	"github.com/fd1az/craftcalc/internal/config"
	"github.com/fd1az/craftcalc/internal/health"
	"github.com/fd1az/craftcalc/internal/logger"
	"github.com/fd1az/craftcalc/internal/metrics"
	"github.com/fd1az/craftcalc/internal/monolith"
	"github.com/fd1az/craftcalc/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type mode int

const (
	modeTUI mode = iota
	modeCLI
	modeServe
)

type options struct {
	configPath string
	mode       mode
	recipeID   string
	server     string
	profileID  string
	expandAll  bool
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Print the recipe tree to stdout and exit (no TUI)")
	serveMode := flag.Bool("serve", false, "Serve the HTTP API until interrupted")
	flag.StringVar(&opts.recipeID, "recipe", "", "Recipe id to open")
	flag.StringVar(&opts.server, "server", "", "Game server (defaults to recipes.server)")
	flag.StringVar(&opts.profileID, "profile", "", "Bank stock profile; opens the stock-aware view")
	flag.BoolVar(&opts.expandAll, "expand", false, "CLI mode: expand every sub-recipe before printing")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("craftcalc %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	switch {
	case *serveMode:
		opts.mode = modeServe
	case *cliMode:
		opts.mode = modeCLI
	}
	if opts.mode != modeServe && opts.recipeID == "" {
		fmt.Fprintln(os.Stderr, "error: -recipe is required unless -serve is set")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if opts.mode != modeTUI {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = opts.mode == modeTUI

	// The TUI owns the terminal, so logs are discarded there.
	var out io.Writer = os.Stderr
	if cfg.App.TUIMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting craftcalc", "version", version, "environment", cfg.App.Environment)

	stopTelemetry, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	healthServer := health.NewServer(cfg.HTTP.HealthPort, version, log)
	if opts.mode == modeServe {
		healthServer.Start()
		log.Info(ctx, "health server started", "port", cfg.HTTP.HealthPort)
		defer healthServer.Stop(context.Background())
	}

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&crafting.Module{ServeAPI: opts.mode == modeServe},
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	sr := mono.Services()
	switch opts.mode {
	case modeServe:
		<-ctx.Done()
		log.Info(ctx, "shutting down")
		return nil
	case modeCLI:
		return runCLI(ctx, craftingDI.GetCraftingService(sr), opts)
	default:
		return runTUI(ctx, cfg, craftingDI.GetCraftingService(sr), craftingDI.GetPriceFeed(sr), opts)
	}
}

// startTelemetry installs tracing and metrics when enabled and returns the
// matching shutdown func.
func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	}, log)
	if err != nil {
		return nil, err
	}

	mp, err := metrics.NewMetricProvider(ctx,
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	)
	if err != nil {
		tp.Stop()
		return nil, err
	}

	prom := metrics.NewPrometheusServer(cfg.Telemetry.PrometheusPort)
	prom.Start(func(err error) {
		log.Error(ctx, "prometheus server stopped", "error", err)
	})
	log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		prom.Stop(stopCtx)
		mp.Shutdown(stopCtx)
		tp.Stop()
	}, nil
}

func runCLI(ctx context.Context, svc *app.CraftingService, opts options) error {
	tree, err := svc.OpenTree(ctx, opts.recipeID, opts.server, opts.profileID)
	if err != nil {
		return err
	}

	var report *app.ExpandReport
	if opts.expandAll {
		tree, report = svc.Controller().ExpandAll(ctx, tree, nil)
	}
	return reporter.NewConsoleReporter(os.Stdout).Report(ctx, tree, svc.Summarize(tree), report)
}

func runTUI(ctx context.Context, cfg *config.Config, svc *app.CraftingService, feed *pricefeed.Feed, opts options) error {
	uiOpts := ui.Options{
		Controller: svc.Controller(),
		Open: func(ctx context.Context) (*domain.RecipeTree, error) {
			return svc.OpenTree(ctx, opts.recipeID, opts.server, opts.profileID)
		},
		Freshness: domain.FreshnessPolicy{
			AgingAfter: cfg.Crafting.AgingAfter,
			StaleAfter: cfg.Crafting.StaleAfter,
		},
		Context: ctx,
	}
	if feed != nil {
		uiOpts.Feeds = []string{"prices"}
	}

	p := ui.NewProgram(uiOpts)
	if feed != nil {
		go streamPrices(ctx, feed)
	}
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// streamPrices keeps the price subscription alive for the TUI and reports
// its connection state.
func streamPrices(ctx context.Context, feed *pricefeed.Feed) {
	for {
		ticks, err := feed.Subscribe(ctx)
		if err != nil {
			ui.Send(ui.FeedStatusMsg{Name: "prices", Detail: "retrying"})
			ui.Send(ui.ErrorMsg{Err: err})
		} else {
			ui.Send(ui.FeedStatusMsg{Name: "prices", Connected: true})
			ui.ForwardPrices(ctx, ticks)
			ui.Send(ui.FeedStatusMsg{Name: "prices"})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// marketbrief is a multi-tenant market-brief agent daemon. Each tenant
// gets an isolated workspace, persisted conversations, and scheduled
// report generation, all sharing one model connection and one tool
// catalogue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openbrief/marketbrief/examples"
	"github.com/openbrief/marketbrief/internal/agent"
	"github.com/openbrief/marketbrief/internal/api"
	"github.com/openbrief/marketbrief/internal/buildinfo"
	"github.com/openbrief/marketbrief/internal/config"
	"github.com/openbrief/marketbrief/internal/fetch"
	"github.com/openbrief/marketbrief/internal/llm"
	"github.com/openbrief/marketbrief/internal/market"
	"github.com/openbrief/marketbrief/internal/notify"
	"github.com/openbrief/marketbrief/internal/report"
	"github.com/openbrief/marketbrief/internal/scheduler"
	"github.com/openbrief/marketbrief/internal/search"
	"github.com/openbrief/marketbrief/internal/tenant"
	"github.com/openbrief/marketbrief/internal/tools"
	"github.com/openbrief/marketbrief/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	initConfig := flag.Bool("init", false, "write config.yaml from the example and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	if *initConfig {
		if err := writeExampleConfig(); err != nil {
			slog.Error("init failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "version", buildinfo.Version, "config", path)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	workspaceRoot := cfg.Workspaces.Root
	if workspaceRoot == "" {
		workspaceRoot = filepath.Join(dataDir, "workspaces")
	}
	workspaces, err := workspace.NewManager(workspaceRoot, logger)
	if err != nil {
		return err
	}
	tenants := tenant.NewStore(workspaces, logger)

	llmClient := buildLLMClient(cfg, logger)
	if llmClient == nil {
		logger.Warn("no model provider configured; reports degrade to placeholders")
	}

	searchMgr := search.NewManager(cfg.Search.Provider)
	if cfg.Search.Brave.APIKey != "" {
		searchMgr.Register(search.NewBrave(cfg.Search.Brave.APIKey))
	}
	fetcher := fetch.New()

	var marketClient *market.Client
	if cfg.Market.BaseURL != "" {
		marketClient = market.NewClient(cfg.Market.BaseURL, cfg.Market.Token, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := notify.NewDispatcher(logger)
	var mqttPub *notify.MQTTPublisher
	if cfg.MQTT.Enabled {
		mqttPub = notify.NewMQTTPublisher(cfg.MQTT, logger)
		dispatcher.Register(mqttPub)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher stopped", "error", err)
			}
		}()
	}
	if cfg.SMTP.Enabled {
		dispatcher.Register(notify.NewEmailSender(cfg.SMTP, logger))
	}

	schedStore, err := scheduler.NewStore(filepath.Join(dataDir, "scheduler.db"))
	if err != nil {
		return err
	}
	defer schedStore.Close()

	// The scheduler and generator reference each other through this
	// indirection: tasks fire into the generator, the generator is
	// built after the engine, and the engine's schedule tools need the
	// scheduler.
	var generator *report.Generator
	var engine *agent.Engine

	sched := scheduler.New(logger, schedStore, func(ctx context.Context, task *scheduler.Task, exec *scheduler.Execution) error {
		switch task.Payload.Kind {
		case scheduler.PayloadReport:
			reportType, _ := task.Payload.Data["report_type"].(string)
			res, err := generator.Generate(ctx, task.TenantID, reportType)
			if err != nil {
				return err
			}
			exec.Result = res.ReportID
			return nil
		case scheduler.PayloadWake:
			message, _ := task.Payload.Data["message"].(string)
			out, err := engine.ProcessForUser(ctx, task.TenantID, message, "wake", "scheduler", "")
			if err != nil {
				return err
			}
			exec.Result = out
			return nil
		default:
			return fmt.Errorf("unknown payload kind %q", task.Payload.Kind)
		}
	})

	engine = agent.NewEngine(agent.Options{
		Logger:        logger,
		LLM:           llmClient,
		Model:         cfg.Models.Default,
		MaxIterations: cfg.Agent.MaxIterations,
		Workspaces:    workspaces,
		Tenants:       tenants,
		Search:        searchMgr,
		Fetcher:       fetcher,
		Market:        marketClient,
		Notifier:      dispatcher,
		Scheduler:     sched,
		ShellExec: tools.ShellExecConfig{
			Enabled:        cfg.ShellExec.Enabled,
			AllowedCmds:    cfg.ShellExec.AllowedPrefixes,
			DeniedCmds:     cfg.ShellExec.DeniedPatterns,
			DefaultTimeout: time.Duration(cfg.ShellExec.DefaultTimeoutSec) * time.Second,
		},
	})

	generator = report.NewGenerator(report.Options{
		Logger:     logger,
		Engine:     engine,
		Tenants:    tenants,
		Workspaces: workspaces,
		Market:     marketClient,
		Notifier:   dispatcher,
		MaxRetries: cfg.Report.MaxRetries,
		RetryDelay: cfg.Report.RetryDelay(),
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Every tenant with a daily cadence gets a standing report task
	if ids, err := workspaces.List(); err == nil {
		for _, id := range ids {
			tcfg, err := tenants.Get(id)
			if err != nil || tcfg.Preferences.ReportFrequency != "daily" {
				continue
			}
			if err := sched.EnsureDailyReport(id, tcfg.Preferences.ReportTime, tcfg.Preferences.Timezone); err != nil {
				logger.Warn("daily report task setup failed", "tenant", id, "error", err)
			}
		}
	}

	server := api.NewServer(api.Options{
		Logger:     logger,
		Engine:     engine,
		Generator:  generator,
		Workspaces: workspaces,
		Tenants:    tenants,
		Address:    cfg.Listen.Address,
		Port:       cfg.Listen.Port,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", "error", err)
	}
	sched.Stop()
	if mqttPub != nil {
		if err := mqttPub.Stop(shutdownCtx); err != nil {
			logger.Warn("mqtt shutdown", "error", err)
		}
	}

	logger.Info("stopped")
	return nil
}

// writeExampleConfig seeds a fresh config.yaml in the working
// directory. Refuses to overwrite an existing file.
func writeExampleConfig() error {
	const path = "config.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, examples.ConfigYAML, 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s; edit it and start the daemon\n", path)
	return nil
}

// buildLLMClient picks the model provider from config. Nil means no
// provider is available.
func buildLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	switch cfg.Models.Provider {
	case "ollama":
		return llm.NewOllamaClient(cfg.Models.OllamaURL)
	case "anthropic", "":
		if cfg.Anthropic.APIKey == "" {
			return nil
		}
		return llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger)
	default:
		logger.Warn("unknown model provider", "provider", cfg.Models.Provider)
		return nil
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/vcdelay/external/config"
	"github.com/foxseedlab/vcdelay/external/discord"
	repositoryimpl "github.com/foxseedlab/vcdelay/external/repository"
	webhookimpl "github.com/foxseedlab/vcdelay/external/webhook"
	"github.com/foxseedlab/vcdelay/internal/command"
	"github.com/foxseedlab/vcdelay/internal/config"
	discordpkg "github.com/foxseedlab/vcdelay/internal/discord"
	"github.com/foxseedlab/vcdelay/internal/notifier"
	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/retention"
	"github.com/foxseedlab/vcdelay/internal/session"
	"github.com/foxseedlab/vcdelay/internal/telemetry"
	"github.com/samber/do/v2"
)

const (
	serviceName           = "vcdelay"
	serviceVersion        = "1.0.0"
	discordConnectTimeout = 20 * time.Second
	guildSetupTimeout     = 10 * time.Second
	watchingStatusText    = "ボイスチャンネル | /help でヘルプ"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	closeLog := initLogger(cfg)
	defer closeLog()
	slog.Info("startup: configuration loaded", "env", cfg.Env, "database_driver", cfg.DatabaseDriver)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	notifier.RegisterDI(injector)
	session.RegisterDI(injector)
	command.RegisterDI(injector)
	retention.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Error("repository close failed", "error", err)
		}
	}()
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	commands, err := do.Invoke[*command.Handler](injector)
	if err != nil {
		slog.Error("failed to resolve command handler", "error", err)
		os.Exit(1)
	}
	cleanup, err := do.Invoke[*retention.Job](injector)
	if err != nil {
		slog.Error("failed to resolve retention job", "error", err)
		os.Exit(1)
	}

	// Handlers go in before Connect so no event from the initial guild burst is missed.
	dc.RegisterVoiceStateUpdateHandler(manager.HandleVoiceStateUpdate)
	dc.RegisterSlashCommandHandler(commands.HandleSlashCommand)
	dc.RegisterGuildAvailableHandler(func(guildID, guildName string) {
		ensureGuildSettings(repo, guildID, guildName)
	})

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	manager.SetBotUserID(botUserID)

	if err := dc.UpsertSlashCommands("", command.Definitions(cfg)); err != nil {
		slog.Error("failed to upsert slash commands", "error", err)
		os.Exit(1)
	}
	if err := dc.SetWatchingStatus(watchingStatusText); err != nil {
		slog.Warn("failed to set watching status", "error", err)
	}
	slog.Info("discord handlers registered", "bot_user_id", botUserID, "commands", []string{"setdelay", "setchannel", "enable", "disable", "status", "help"})

	jobCtx, stopJobs := context.WithCancel(context.Background())
	jobDone := make(chan struct{})
	go func() {
		cleanup.Start(jobCtx)
		close(jobDone)
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	stopJobs()
	<-jobDone
	// the gateway goes first so no presence event can schedule work past the manager shutdown
	if err := dc.Close(); err != nil {
		slog.Error("discord close failed", "error", err)
	}
	manager.Shutdown()
	shutdownMetricsServer(metricsServer)
}

func ensureGuildSettings(repo repository.SettingsRepository, guildID, guildName string) {
	ctx, cancel := context.WithTimeout(context.Background(), guildSetupTimeout)
	defer cancel()
	if err := repo.EnsureGuildSettings(ctx, guildID); err != nil {
		slog.Error("failed to initialize guild settings", "error", err, "guild_id", guildID, "guild_name", guildName)
		return
	}
	slog.Info("guild available", "guild_id", guildID, "guild_name", guildName)
}

func shutdownMetricsServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server shutdown failed", "error", err)
	}
}

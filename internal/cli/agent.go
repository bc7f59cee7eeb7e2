package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LoreClaw/LoreClaw/internal/agent"
	"github.com/LoreClaw/LoreClaw/internal/alerts"
	"github.com/LoreClaw/LoreClaw/internal/bus"
	"github.com/LoreClaw/LoreClaw/internal/channels"
	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/connect"
	"github.com/LoreClaw/LoreClaw/internal/events"
	"github.com/LoreClaw/LoreClaw/internal/fetch"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/provider"
	"github.com/LoreClaw/LoreClaw/internal/scheduler"
	"github.com/LoreClaw/LoreClaw/internal/secrets"
	"github.com/LoreClaw/LoreClaw/internal/telegram"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the assistant: long-poll Telegram and answer from the knowledge base",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	overlaySecrets(cfg)

	if !cfg.Channels.Telegram.Enabled {
		return errors.New("telegram channel is disabled in config")
	}
	token := cfg.Channels.Telegram.Token
	if token == "" {
		return errors.New("no telegram token configured (run 'loreclaw onboard')")
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return err
	}
	lockPath, err := config.LockPath(cfg)
	if err != nil {
		return err
	}
	lock := connect.NewInstanceLock(lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another agent instance already holds %s", lockPath)
	}
	defer lock.Unlock()

	dbPath, err := config.EventDBPath(cfg)
	if err != nil {
		return err
	}
	history, err := timeline.NewService(dbPath)
	if err != nil {
		return fmt.Errorf("open timeline: %w", err)
	}
	defer history.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := events.NewExporter(cfg.Events.Brokers, cfg.Events.Topic)
	if exporter != nil {
		history.OnEvent(exporter.Enqueue)
		go exporter.Run(ctx)
	}
	notifier := alerts.NewNotifier(cfg.Alerts.SlackToken, cfg.Alerts.SlackChannel)

	store := knowledge.NewStore(fetch.NewFetcher(cfg.Knowledge.SourceURL), history)
	store.Prime(ctx)
	if store.Current().FetchedAt.IsZero() {
		history.LogEvent(timeline.EventFallback, "agent", "", "serving fallback knowledge")
		notifier.Notify(ctx, "LoreClaw started on fallback knowledge: source unreachable and no mirrored snapshot.")
	}
	refresher := knowledge.NewRefresher(store, history, cfg.Knowledge.RefreshInterval)
	go refresher.Run(ctx)

	provID, modelName := provider.ParseModelString(cfg.Model.Name)
	if (provID == "" || provID == "openai") && cfg.Providers.OpenAI.APIKey == "" {
		slog.Warn("No OpenAI API key configured, model calls will fail until one is set")
	}
	prov, err := provider.Resolve(cfg)
	if err != nil {
		return err
	}

	msgBus := bus.NewMessageBus()
	client := telegram.NewClient(token, cfg.Channels.Telegram.APIBase)
	channel := channels.NewTelegramChannel(msgBus, client, cfg.Channels.Telegram.PollTimeout)

	loop := agent.NewLoop(agent.LoopOptions{
		Bus:           msgBus,
		Provider:      prov,
		Store:         store,
		History:       history,
		Model:         modelName,
		MaxTokens:     cfg.Model.MaxTokens,
		Temperature:   cfg.Model.Temperature,
		MaxConcurrent: cfg.Model.MaxConcurrent,
		AllowFrom:     cfg.Channels.Telegram.AllowFrom,
	})

	msgBus.Subscribe(channel.Name(), func(m *bus.OutboundMessage) {
		if err := channel.Send(ctx, m); err != nil {
			slog.Error("Outbound send failed", "chat", m.ChatID, "error", err)
		}
	})
	go msgBus.DispatchOutbound(ctx)
	go loop.Run(ctx)

	if cfg.Announcer.Enabled {
		announcer := scheduler.NewAnnouncer(msgBus, history, channel.Name(),
			cfg.Announcer.ChatID, cfg.Announcer.Message, cfg.Announcer.Interval)
		go announcer.Run(ctx)
	}

	if srv := startHealthServer(cfg, store, time.Now()); srv != nil {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	printHeader("🤖 LoreClaw Agent")
	fmt.Printf("Model:    %s\n", cfg.Model.Name)
	fmt.Printf("Source:   %s\n", cfg.Knowledge.SourceURL)
	fmt.Printf("Data dir: %s\n", dataDir)

	history.LogEvent(timeline.EventSessionStarted, channel.Name(), "", "")

	controller := connect.NewController(connect.NewGuard(client))
	controller.Base = cfg.Session.BaseDelay
	controller.Cap = cfg.Session.MaxDelay
	controller.MaxAttempts = cfg.Session.MaxAttempts

	err = controller.Run(ctx, channel.Run)
	loop.Stop()
	if err != nil {
		history.LogEvent(timeline.EventSessionFatal, channel.Name(), "", err.Error())
		notifier.Notify(context.Background(),
			fmt.Sprintf("LoreClaw gave up on the Telegram session: %v. Run 'loreclaw reset' to free the slot.", err))
		return err
	}

	history.LogEvent(timeline.EventSessionEnded, channel.Name(), "", "")
	fmt.Println("Agent stopped.")
	return nil
}

// overlaySecrets fills credentials the config left blank from the OS
// keyring.
func overlaySecrets(cfg *config.Config) {
	if cfg.Channels.Telegram.Token == "" {
		if tok, err := secrets.Resolve(secrets.TelegramToken); err == nil {
			cfg.Channels.Telegram.Token = tok
		}
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		if key, err := secrets.Resolve(secrets.OpenAIAPIKey); err == nil {
			cfg.Providers.OpenAI.APIKey = key
		}
	}
}

type healthResponse struct {
	Status              string `json:"status"`
	Version             string `json:"version"`
	Channel             string `json:"channel"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
	Knowledge           string `json:"knowledge"`
	KnowledgeAgeSeconds int64  `json:"knowledge_age_seconds,omitempty"`
}

func newHealthMux(store *knowledge.Store, startedAt time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "ok",
			Version:       version,
			Channel:       "telegram",
			UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		}
		switch snap := store.Current(); {
		case snap == nil:
			resp.Knowledge = "unprimed"
		case snap.FetchedAt.IsZero():
			resp.Knowledge = "fallback"
		default:
			resp.Knowledge = "live"
			resp.KnowledgeAgeSeconds = int64(time.Since(snap.FetchedAt).Seconds())
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

// startHealthServer serves the health endpoint when a gateway port is
// configured. The default bind is loopback only.
func startHealthServer(cfg *config.Config, store *knowledge.Store, startedAt time.Time) *http.Server {
	if cfg.Gateway.Port <= 0 {
		return nil
	}
	addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	srv := &http.Server{Addr: addr, Handler: newHealthMux(store, startedAt)}
	go func() {
		slog.Info("Health endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Health endpoint failed", "error", err)
		}
	}()
	return srv
}

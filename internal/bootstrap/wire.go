package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"go-antiraid/internal/bot"
	"go-antiraid/internal/commands"
	"go-antiraid/internal/config"
	"go-antiraid/internal/correlator"
	"go-antiraid/internal/database"
	"go-antiraid/internal/decision"
	"go-antiraid/internal/dispatcher"
	"go-antiraid/internal/forensics"
	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/notifier"
	"go-antiraid/internal/state"
	"go-antiraid/internal/watchdog"
)

// joinHandlingTimeout bounds one join end to end, including a full
// mitigation fan-out.
const joinHandlingTimeout = 2 * time.Minute

type Components struct {
	Session  *bot.Session
	Database *database.Database

	Tracker    *state.JoinWindowTracker
	Engine     *decision.Engine
	Controller *decision.LockdownController
	Monitor    *correlator.Monitor
	Lanes      *correlator.LaneRegistry

	Events   *bot.EventHandlers
	Commands *commands.Handler

	Watchdog   *watchdog.Watchdog
	Janitor    *correlator.Janitor
	Probe      *bot.GatewayProbe
	Exporter   *metrics.Exporter
	Supervisor *suture.Supervisor
}

func Wire(ctx context.Context, cfg *config.Config) (*Components, error) {
	logging.Info("Wiring components...")

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if !db.IsConnected(ctx) {
		db.Close()
		return nil, fmt.Errorf("database connection not available")
	}
	logging.Info("Database connection verified")

	session, err := bot.New(cfg.Bot.Token)
	if err != nil {
		db.Close()
		return nil, err
	}

	var rest *dispatcher.RESTClient
	if cfg.Mitigation.UseFastHTTP {
		pool := dispatcher.NewHTTPPool(cfg.Mitigation.HTTPPoolSize)
		rest = dispatcher.NewRESTClient(pool, dispatcher.NewRateLimitMonitor(), cfg.Bot.Token,
			cfg.Mitigation.APIBaseURL, cfg.Mitigation.BanDeleteMessageDays)
		logging.Info("Ban/kick requests go through fasthttp (%d clients)", pool.Size())
	}
	platform := dispatcher.NewDiscordPlatform(session.Discord(), rest, cfg.Mitigation.BanDeleteMessageDays)

	executor := dispatcher.NewExecutor(dispatcher.ExecutorConfig{
		MaxParallel:       cfg.Mitigation.MaxParallel,
		CallTimeout:       cfg.Mitigation.CallTimeout,
		RequestsPerSecond: cfg.Mitigation.RequestsPerSecond,
		Burst:             cfg.Mitigation.Burst,
	})

	tracker := state.NewJoinWindowTracker()
	engine := decision.NewEngine(tracker, cfg.Detection.HighRiskWeight)
	controller := decision.NewLockdownController(platform, executor, state.NewLockdownTable(), db, cfg.Mitigation.CallTimeout)

	locked, err := db.LoadLockdowns(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load persisted lockdowns: %w", err)
	}
	controller.Rehydrate(locked)
	if len(locked) > 0 {
		logging.Info("Rehydrated %d active lockdowns", len(locked))
	}

	lanes := correlator.NewLaneRegistry()
	monitor := correlator.NewMonitor(
		config.NewSettingsStore(db),
		engine,
		controller,
		forensics.NewRecorder(db, cfg.Incidents.WriteAttempts, cfg.Incidents.InitialBackoff),
		notifier.NewAlertNotifier(session.Discord()),
		lanes,
	)

	wd := watchdog.NewWatchdog(5 * time.Second)
	janitor := correlator.NewJanitor(lanes, tracker, cfg.Detection.JanitorInterval, cfg.Detection.LaneIdleTTL, wd)
	probe := bot.NewGatewayProbe(session, wd, 30*time.Second)
	wd.RegisterComponent(janitor.String(), 3*cfg.Detection.JanitorInterval)
	wd.RegisterComponent(probe.String(), 3*time.Minute)

	c := &Components{
		Session:    session,
		Database:   db,
		Tracker:    tracker,
		Engine:     engine,
		Controller: controller,
		Monitor:    monitor,
		Lanes:      lanes,
		Events:     bot.NewEventHandlers(monitor, joinHandlingTimeout),
		Commands:   commands.NewHandler(monitor, joinHandlingTimeout),
		Watchdog:   wd,
		Janitor:    janitor,
		Probe:      probe,
	}
	if cfg.Metrics.Enabled {
		c.Exporter = metrics.NewExporter(cfg.Metrics.ListenAddr, wd)
	}
	c.Supervisor = buildSupervisor(c)

	logging.Info("Component wiring complete")
	return c, nil
}

func buildSupervisor(c *Components) *suture.Supervisor {
	root := suture.New("antiraid", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn("[SUPERVISOR] %s", e)
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	root.Add(c.Watchdog)
	root.Add(c.Janitor)
	root.Add(c.Probe)
	if c.Exporter != nil {
		root.Add(c.Exporter)
	}
	return root
}

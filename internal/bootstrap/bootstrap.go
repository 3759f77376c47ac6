package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go-antiraid/internal/commands"
	"go-antiraid/internal/config"
	"go-antiraid/internal/logging"
)

type Bootstrap struct {
	Config      *config.Config
	Components  *Components
	configPath  string
	cancel      context.CancelFunc
	done        <-chan error
	initialized bool
}

func New(configPath string) *Bootstrap {
	return &Bootstrap{configPath: configPath}
}

func (b *Bootstrap) Initialize() error {
	if err := b.loadConfig(); err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}

	if err := b.wireComponents(); err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

func (b *Bootstrap) loadConfig() error {
	cfg, err := config.Load(b.configPath)
	if err != nil {
		return err
	}
	b.Config = cfg
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	return logging.InitGlobalLogger(logging.ParseLevel(b.Config.Logging.Level), b.Config.Logging.Path)
}

func (b *Bootstrap) wireComponents() error {
	c, err := Wire(context.Background(), b.Config)
	if err != nil {
		return err
	}
	b.Components = c
	return nil
}

// Start connects to Discord, registers /antiraid and starts the supervised
// background services.
func (b *Bootstrap) Start(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	c := b.Components

	c.Events.Register(c.Session)
	c.Session.AddHandler(c.Commands.HandleInteraction)

	if err := c.Session.Connect(); err != nil {
		return fmt.Errorf("gateway connection failed: %w", err)
	}
	if err := c.Session.RegisterCommands(b.Config.Bot.CommandGuildID, commands.Definitions()); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = c.Supervisor.ServeBackground(ctx)

	logging.Info("All components started")
	return nil
}

func (b *Bootstrap) Shutdown() error {
	if b.cancel != nil {
		b.cancel()
		if err := <-b.done; err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("Supervisor stopped with: %v", err)
		}
	}
	return Shutdown(b.Components)
}

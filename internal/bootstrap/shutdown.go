package bootstrap

import (
	"go-antiraid/internal/logging"
)

// Shutdown closes the gateway first so no new joins arrive, then waits for
// pending alerts before closing the database.
func Shutdown(c *Components) error {
	if c == nil {
		return nil
	}
	logging.Info("Starting graceful shutdown...")

	if c.Session != nil {
		logging.Info("Closing gateway...")
		if err := c.Session.Close(); err != nil {
			logging.Warn("Gateway close: %v", err)
		}
	}

	if c.Monitor != nil {
		logging.Info("Waiting for pending alerts...")
		c.Monitor.Wait()
	}

	if c.Database != nil {
		logging.Info("Closing database...")
		if err := c.Database.Close(); err != nil {
			logging.Error("Database close: %v", err)
		}
	}

	logging.Info("Graceful shutdown complete")
	return logging.Close()
}

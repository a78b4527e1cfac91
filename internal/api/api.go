// Package api wires the gitwatch HTTP endpoints to a running watcher.
package api

import (
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/pkg/api"
	metricsAPI "github.com/nicholas-fedor/gitwatch/pkg/api/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/api/state"
	"github.com/nicholas-fedor/gitwatch/pkg/api/update"
)

// Config selects the endpoints to serve and where to listen.
type Config struct {
	Host          string // Host to bind to, empty for all interfaces.
	Port          string // Listen port.
	Token         string // Bearer token required on every request.
	Repository    string // Repository URL reported by the state endpoint.
	EnableState   bool   // Serve /v1/state.
	EnableUpdate  bool   // Serve /v1/update.
	EnableMetrics bool   // Serve /v1/metrics.
}

// Enabled reports whether any endpoint is selected.
func (c Config) Enabled() bool {
	return c.EnableState || c.EnableUpdate || c.EnableMetrics
}

// GetAPIAddr joins host and port, bracketing IPv6 addresses.
func GetAPIAddr(host, port string) string {
	if host == "" {
		return ":" + port
	}

	return net.JoinHostPort(host, port)
}

// NewAPI creates the HTTP API with the endpoints selected by cfg.
//
// The update endpoint is only registered when trigger is non-nil.
//
// Parameters:
//   - cfg: Endpoint selection and listen settings.
//   - reader: State source for /v1/state.
//   - trigger: Channel the watch loop waits on, or nil.
//   - server: Optional server to run instead of an http.Server.
//
// Returns:
//   - *api.API: API with its handlers registered.
func NewAPI(
	cfg Config,
	reader state.Reader,
	trigger chan<- struct{},
	server ...api.HTTPServer,
) *api.API {
	httpAPI := api.New(cfg.Token, GetAPIAddr(cfg.Host, cfg.Port), server...)

	if cfg.EnableState {
		stateHandler := state.New(cfg.Repository, reader)
		httpAPI.RegisterFunc(stateHandler.Path, stateHandler.Handle)
	}

	if cfg.EnableUpdate {
		if trigger != nil {
			updateHandler := update.New(trigger)
			httpAPI.RegisterFunc(updateHandler.Path, updateHandler.Handle)
		} else {
			logrus.Warn("The update endpoint needs a running watch loop and is not served")
		}
	}

	if cfg.EnableMetrics {
		metricsHandler := metricsAPI.New()
		httpAPI.RegisterHandler(metricsHandler.Path, metricsHandler.Handle)
	}

	return httpAPI
}

// SetupAndStartAPI starts the HTTP API in the background when any endpoint is enabled.
//
// The server shuts down when ctx is done.
//
// Parameters:
//   - ctx: Context controlling the server's lifecycle.
//   - cfg: Endpoint selection and listen settings.
//   - reader: State source for /v1/state.
//   - trigger: Channel the watch loop waits on, or nil.
//   - server: Optional server to run instead of an http.Server.
//
// Returns:
//   - error: Non-nil if the API cannot start, e.g. without a token.
func SetupAndStartAPI(
	ctx context.Context,
	cfg Config,
	reader state.Reader,
	trigger chan<- struct{},
	server ...api.HTTPServer,
) error {
	if !cfg.Enabled() {
		return nil
	}

	if err := NewAPI(cfg, reader, trigger, server...).Start(ctx, false); err != nil {
		logrus.WithError(err).Error("Failed to start API")

		return fmt.Errorf("failed to start HTTP API: %w", err)
	}

	return nil
}

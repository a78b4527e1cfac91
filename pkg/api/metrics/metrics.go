// Package metrics serves gitwatch's Prometheus metrics over the HTTP API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
)

// Path is the endpoint the metrics are served on.
const Path = "/v1/metrics"

// Handler is an HTTP handle for serving metric data.
type Handler struct {
	Path    string
	Handle  http.Handler
	Metrics *metrics.Metrics
}

// New creates a Handler for the default metrics registry.
func New() *Handler {
	return &Handler{
		Path:    Path,
		Handle:  promhttp.Handler(),
		Metrics: metrics.Default(),
	}
}

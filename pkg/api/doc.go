// Package api provides an HTTP server for gitwatch's API endpoints.
// Every endpoint requires a bearer token.
//
// Key components:
//   - API: Manages server setup and endpoint registration.
//   - RequireToken: Wraps HTTP handlers with token validation.
//   - RunHTTPServer: Serves until the context is done, then shuts down gracefully.
//
// Usage example:
//
//	httpAPI := api.New("secure-token", ":8080")
//	httpAPI.RegisterHandler("/v1/metrics", metricsAPI.New().Handle)
//	if err := httpAPI.Start(ctx, false); err != nil {
//	    logrus.WithError(err).Error("API start failed")
//	}
package api

// Package logging writes the gitwatch startup summary.
// It reports the version, the watched repository, credentials in redacted form,
// notification services, schedule information and the HTTP API status.
package logging

import (
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/gitwatch/internal/util"
	"github.com/nicholas-fedor/gitwatch/pkg/notifications"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// defaultAPIPort is reported when --http-api-port is empty.
const defaultAPIPort = "8080"

// StartupInfo describes the watcher being started.
type StartupInfo struct {
	Version    string           // gitwatch version.
	Repository string           // Canonical repository URL without embedded auth.
	Credential types.Credential // Configured credential, nil for anonymous access.
	Filtering  string           // Branch filter description.
	NextRun    time.Time        // First scheduled observation, zero when not scheduled.
}

// WriteStartupMessage logs startup information based on configuration flags.
//
// With --no-startup-message the summary is written through the local logger
// only, so it never reaches the notification services.
//
// Parameters:
//   - c: Command with the system flags registered.
//   - info: Watcher description.
//   - notifier: Notifier whose services are listed, may be nil.
func WriteStartupMessage(c *cobra.Command, info StartupInfo, notifier types.Notifier) {
	flags := c.PersistentFlags()

	noStartupMessage, _ := flags.GetBool("no-startup-message")
	startupLog := SetupStartupLogger(noStartupMessage)

	startupLog.WithField("repo", info.Repository).Info("gitwatch ", info.Version)

	if info.Credential != nil {
		startupLog.WithField("credential", types.RedactCredential(info.Credential)).
			Info("Using configured credentials")
	} else {
		startupLog.Info("Using anonymous access")
	}

	var notifierNames []string
	if notifier != nil {
		notifierNames = notifier.GetNames()
	}

	LogNotifierInfo(startupLog, notifierNames)

	startupLog.Debug(info.Filtering)

	LogScheduleInfo(startupLog, c, info.NextRun)

	if addr, enabled := apiAddress(c); enabled {
		startupLog.Info("The HTTP API is enabled at " + addr + ".")
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		startupLog.Warn(
			"Trace level enabled: log will include repository contents such as commit messages and paths",
		)
	}
}

// SetupStartupLogger returns the entry startup messages are written to.
//
// Parameters:
//   - noStartupMessage: Keep the messages out of notifications.
//
// Returns:
//   - *logrus.Entry: Local-only entry when suppressed, the standard logger otherwise.
func SetupStartupLogger(noStartupMessage bool) *logrus.Entry {
	if noStartupMessage {
		return notifications.LocalLog
	}

	return logrus.NewEntry(logrus.StandardLogger())
}

// LogNotifierInfo logs the configured notification services.
//
// Parameters:
//   - log: Entry to write to.
//   - notifierNames: Service names, e.g. "slack".
func LogNotifierInfo(log *logrus.Entry, notifierNames []string) {
	if len(notifierNames) > 0 {
		log.Info("Using notifications: " + strings.Join(notifierNames, ", "))
	} else {
		log.Info("Using no notifications")
	}
}

// LogScheduleInfo logs when observations will happen.
//
// Parameters:
//   - log: Entry to write to.
//   - c: Command providing --run-once, --pre-run and --schedule.
//   - sched: First scheduled observation, or zero.
func LogScheduleInfo(log *logrus.Entry, c *cobra.Command, sched time.Time) {
	flags := c.PersistentFlags()

	runOnce, _ := flags.GetBool("run-once")
	preRun, _ := flags.GetBool("pre-run")
	schedule, _ := flags.GetString("schedule")

	switch {
	case runOnce:
		log.Info("Running a one time observation.")

		return
	case preRun:
		log.Info("Reporting the current state on start, then watching for changes.")
	}

	if schedule != "" {
		log.WithField("schedule", schedule).Info("Observing on a cron schedule")
	}

	if sched.IsZero() {
		log.Info("Periodic observations are enabled with the default interval.")

		return
	}

	until := util.FormatDuration(time.Until(sched))
	log.Info("Scheduling first run: " + sched.Format("2006-01-02 15:04:05 -0700 MST"))
	log.Info("Note that the first check will be performed in " + until)
}

// apiAddress reports the HTTP API listen address and whether any endpoint is enabled.
func apiAddress(c *cobra.Command) (string, bool) {
	flags := c.PersistentFlags()

	stateAPI, _ := flags.GetBool("http-api-state")
	updateAPI, _ := flags.GetBool("http-api-update")
	metricsAPI, _ := flags.GetBool("http-api-metrics")

	host, _ := flags.GetString("http-api-host")

	port, _ := flags.GetString("http-api-port")
	if port == "" {
		port = defaultAPIPort
	}

	return net.JoinHostPort(host, port), stateAPI || updateAPI || metricsAPI
}

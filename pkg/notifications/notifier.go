package notifications

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// NewNotifier creates a Notifier from the notification flags of c.
//
// Parameters:
//   - c: Command with registered notification flags.
//
// Returns:
//   - types.Notifier: Running notifier, possibly with no services.
//   - error: Non-nil if the level or a service URL is invalid.
func NewNotifier(c *cobra.Command) (types.Notifier, error) {
	flag := c.PersistentFlags()

	level, _ := flag.GetString("notifications-level")
	if level == "" {
		level = logrus.InfoLevel.String()
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid notifications log level %q: %w", level, err)
	}

	stdout, _ := flag.GetBool("notification-log-stdout")
	tplString, _ := flag.GetString("notification-template")
	urls, _ := flag.GetStringArray("notification-url")

	data := GetTemplateData(c)
	delay := GetDelay(c)

	services := make([]string, len(urls))
	for i, u := range urls {
		services[i] = sanitizeURLForLogging(u)
	}

	LocalLog.WithFields(logrus.Fields{
		"services": services,
		"template": tplString,
		"stdout":   stdout,
		"delay":    delay,
		"hostname": data.Host,
		"title":    data.Title,
		"level":    logLevel,
	}).Debug("Creating notifier with configuration")

	return createNotifier(urls, logLevel, tplString, data, stdout, delay)
}

// AddLogHook forwards log entries to notifier when it supports it.
func AddLogHook(notifier types.Notifier) {
	if hooked, ok := notifier.(interface{ AddLogHook() }); ok {
		hooked.AddLogHook()
	}
}

// GetDelay returns the configured delay before each notification.
func GetDelay(c *cobra.Command) time.Duration {
	delay, _ := c.PersistentFlags().GetInt("notifications-delay")
	if delay > 0 {
		return time.Duration(delay) * time.Second
	}

	return 0
}

// GetTitle formats the title based on the passed hostname and tag.
func GetTitle(hostname string, tag string) string {
	titleBuilder := strings.Builder{}
	if tag != "" {
		titleBuilder.WriteRune('[')
		titleBuilder.WriteString(tag)
		titleBuilder.WriteRune(']')
		titleBuilder.WriteRune(' ')
	}

	titleBuilder.WriteString("Repository changes")

	if hostname != "" {
		titleBuilder.WriteString(" on ")
		titleBuilder.WriteString(hostname)
	}

	return titleBuilder.String()
}

// GetTemplateData populates the static notification data from flags and environment.
func GetTemplateData(c *cobra.Command) StaticData {
	flag := c.PersistentFlags()

	hostname, _ := flag.GetString("notifications-hostname")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	title := ""

	if skip, _ := flag.GetBool("notification-skip-title"); !skip {
		tag, _ := flag.GetString("notification-title-tag")
		title = GetTitle(hostname, tag)
	}

	return StaticData{
		Host:  hostname,
		Title: title,
	}
}

package notifications

import (
	"bytes"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/nicholas-fedor/gitwatch/pkg/notifications/templates"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// LocalLog is a logrus logger that does not send entries as notifications.
// It's used for internal logging to avoid notification loops.
var LocalLog = logrus.WithField("notify", "no")

// router defines the interface for sending Shoutrrr notifications.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// shoutrrrTypeNotifier implements types.Notifier and logrus.Hook for Shoutrrr notifications.
// Messages are queued and sent from a single goroutine with the configured delay.
type shoutrrrTypeNotifier struct {
	Urls      []string
	Router    router
	logLevel  logrus.Level
	template  *template.Template
	messages  chan string
	done      chan bool
	params    *shoutrrrTypes.Params
	data      StaticData
	receiving bool
	delay     time.Duration

	mu     sync.Mutex
	closed bool
}

// GetScheme extracts the scheme part of a Shoutrrr URL.
// It returns "invalid" if no scheme is found.
func GetScheme(url string) string {
	schemeEnd := strings.Index(url, ":")
	if schemeEnd <= 0 {
		return "invalid"
	}

	return url[:schemeEnd]
}

// sanitizeURLForLogging reduces a service URL to its scheme and host.
// Shoutrrr URLs carry tokens in the user info, path and query.
func sanitizeURLForLogging(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return GetScheme(rawURL)
	}

	if parsed.Host == "" {
		return parsed.Scheme + "://"
	}

	return parsed.Scheme + "://" + parsed.Host
}

// GetNames returns a list of notification service names derived from URLs.
func (n *shoutrrrTypeNotifier) GetNames() []string {
	names := make([]string, len(n.Urls))
	for i, u := range n.Urls {
		names[i] = GetScheme(u)
	}

	return names
}

// GetURLs returns the list of URLs for configured notification services.
func (n *shoutrrrTypeNotifier) GetURLs() []string {
	return n.Urls
}

// AddLogHook adds the notifier as a logrus hook so log entries at or above the
// notification level are sent as well.
func (n *shoutrrrTypeNotifier) AddLogHook() {
	if n.receiving {
		return
	}

	n.receiving = true
	logrus.AddHook(n)
}

// createNotifier initializes a Shoutrrr notifier and starts its sending goroutine.
//
// An unusable template is logged and replaced by the default template. Shoutrrr's
// own logs go to stdout when stdout is set, otherwise to the logrus trace level.
//
// Parameters:
//   - urls: Shoutrrr service URLs.
//   - level: Most verbose log level forwarded by the log hook.
//   - tplString: Template text or the name of a common template.
//   - data: Static template data.
//   - stdout: Write Shoutrrr logs to stdout.
//   - delay: Delay before each send.
//
// Returns:
//   - *shoutrrrTypeNotifier: Running notifier.
//   - error: Non-nil if a service URL is invalid.
func createNotifier(
	urls []string,
	level logrus.Level,
	tplString string,
	data StaticData,
	stdout bool,
	delay time.Duration,
) (*shoutrrrTypeNotifier, error) {
	tpl, err := getShoutrrrTemplate(tplString)
	if err != nil {
		LocalLog.WithError(err).Error("Could not use configured notification template, using default template")
	}

	var logger shoutrrrTypes.StdLogger
	if stdout {
		logger = log.New(os.Stdout, ``, 0)
	} else {
		logger = log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)
	}

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Shoutrrr notifications: %w", err)
	}

	params := &shoutrrrTypes.Params{}
	if data.Title != "" {
		params.SetTitle(data.Title)
	}

	n := &shoutrrrTypeNotifier{
		Urls:     urls,
		Router:   sender,
		messages: make(chan string, 1),
		done:     make(chan bool),
		logLevel: level,
		template: tpl,
		data:     data,
		params:   params,
		delay:    delay,
	}

	go sendNotifications(n)

	return n, nil
}

// sendNotifications processes queued messages and sends them via the router.
func sendNotifications(notifier *shoutrrrTypeNotifier) {
	for msg := range notifier.messages {
		time.Sleep(notifier.delay)

		errs := notifier.Router.Send(msg, notifier.params)
		for i, err := range errs {
			if err != nil {
				LocalLog.WithFields(logrus.Fields{
					"service": sanitizeURLForLogging(notifier.Urls[i]),
					"index":   i,
				}).WithError(err).Error("Failed to send shoutrrr notification")
			}
		}
	}

	notifier.done <- true
}

// buildMessage renders data with the configured template.
func (n *shoutrrrTypeNotifier) buildMessage(data Data) (string, error) {
	var body bytes.Buffer

	if err := n.template.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute notification template: %w", err)
	}

	return body.String(), nil
}

// send renders data and queues the message. Empty messages are skipped.
func (n *shoutrrrTypeNotifier) send(data Data) {
	msg, err := n.buildMessage(data)
	if err != nil {
		LocalLog.WithError(err).Error("Notification template error")

		return
	}

	if msg == "" {
		if len(n.Urls) > 1 {
			LocalLog.Info("Skipping notification due to empty message")
		}

		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		LocalLog.Debug("Notifier closed, dropping message")

		return
	}

	n.messages <- msg
}

// Notify sends a message describing one branch change.
func (n *shoutrrrTypeNotifier) Notify(repo string, change types.BranchChange, state types.RepoState) {
	n.send(Data{
		StaticData: n.data,
		Repo:       repo,
		Change:     &change,
		State:      state.Clone(),
	})
}

// Close prevents further messages from being queued and waits until all queued messages are sent.
func (n *shoutrrrTypeNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()

		return
	}

	n.closed = true
	close(n.messages)
	n.mu.Unlock()

	LocalLog.Info("Waiting for the notification goroutine to finish")

	<-n.done
}

// Levels returns the log levels that trigger notifications.
func (n *shoutrrrTypeNotifier) Levels() []logrus.Level {
	return logrus.AllLevels[:n.logLevel+1]
}

// Fire sends a log entry as a notification.
func (n *shoutrrrTypeNotifier) Fire(entry *logrus.Entry) error {
	if entry.Data["notify"] == "no" {
		return nil
	}

	// Send from a goroutine so a full queue never stalls the logging caller.
	go n.send(Data{StaticData: n.data, Entries: []*logrus.Entry{entry}})

	return nil
}

// getShoutrrrTemplate parses tplString, resolving common template names first.
// An empty string selects the default template. On a parse error the default
// template is returned alongside the error.
func getShoutrrrTemplate(tplString string) (*template.Template, error) {
	tplBase := template.New("").Funcs(templates.Funcs)

	if builtin, found := commonTemplates[tplString]; found {
		logrus.WithField(`template`, tplString).Debug(`Using common template`)
		tplString = builtin
	}

	if tplString != "" {
		tpl, err := tplBase.Parse(tplString)
		if err == nil {
			return tpl, nil
		}

		return template.Must(template.New("").Funcs(templates.Funcs).Parse(commonTemplates[`default`])),
			fmt.Errorf("failed to parse notification template string: %w", err)
	}

	return template.Must(tplBase.Parse(commonTemplates[`default`])), nil
}

package flags

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nicholas-fedor/gitwatch/pkg/git/auth"
)

// DefaultPollInterval is the poll interval used when neither --interval nor --schedule is set.
const DefaultPollInterval = 5 * time.Second

// defaultHTTPAPIPort is the port the HTTP API binds to by default.
const defaultHTTPAPIPort = "8080"

// listSeparator splits comma or space separated environment lists.
var listSeparator = regexp.MustCompile("[, ]+")

// Errors returned while processing flags.
var (
	// errInvalidLogFormat indicates an invalid log format was specified.
	errInvalidLogFormat = errors.New("invalid log format specified")
	// errInvalidLogLevel indicates an invalid log level was specified.
	errInvalidLogLevel = errors.New("invalid log level specified")
	// errInvalidOutput indicates an unknown --output format.
	errInvalidOutput = errors.New("invalid output format specified")
	// errScheduleAndInterval indicates both --schedule and --interval were set.
	errScheduleAndInterval = errors.New("only schedule or interval can be defined, not both")
	// errInvalidPorcelain indicates an unknown porcelain version.
	errInvalidPorcelain = errors.New("unknown porcelain version")
	// errOpenFileFailed indicates a failure to open a file for reading secrets.
	errOpenFileFailed = errors.New("failed to open secret file")
	// errCloseFileFailed indicates a failure to close a file after reading secrets.
	errCloseFileFailed = errors.New("failed to close secret file")
	// errReplaceSliceFailed indicates a failure to replace a slice value in a flag.
	errReplaceSliceFailed = errors.New("failed to replace slice value in flag")
	// errReadFileFailed indicates a failure to read a file's contents.
	errReadFileFailed = errors.New("failed to read secret file")
	// errSetFlagFailed indicates a failure to read or set a flag's value.
	errSetFlagFailed = errors.New("failed to set flag value")
	// errInvalidFlagName indicates an invalid flag name was provided.
	errInvalidFlagName = errors.New("invalid flag name provided")
	// errNotSliceValue indicates a flag does not support slice values.
	errNotSliceValue = errors.New("flag does not support slice values")
)

// secretFlags lists the flags whose value may name a file holding the secret.
var secretFlags = []string{
	"password",
	"token",
	"ssh-passphrase",
	"notification-url",
	"http-api-token",
}

// RegisterSystemFlags adds flags that control what is watched and how gitwatch runs.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.DurationP(
		"interval",
		"i",
		envDuration("GITWATCH_POLL_INTERVAL"),
		"Poll interval between observations")

	flags.StringP(
		"schedule",
		"s",
		envString("GITWATCH_SCHEDULE"),
		"The cron expression which defines when to observe the repository")

	flags.BoolP(
		"run-once",
		"R",
		envBool("GITWATCH_RUN_ONCE"),
		"Observe once, print the repository state and exit")

	flags.Bool(
		"pre-run",
		envBool("GITWATCH_PRE_RUN"),
		"Observe and report the current state before the first wait")

	flags.StringP(
		"output",
		"o",
		envString("GITWATCH_OUTPUT"),
		`State output format for --run-once. Possible values: text, json`)

	flags.StringP(
		"branch",
		"b",
		envString("GITWATCH_BRANCH"),
		"Start watching from this branch")

	flags.String(
		"commit",
		envString("GITWATCH_COMMIT"),
		"Start watching from this commit on --branch")

	flags.StringSliceP(
		"exclude-branches",
		"x",
		// Due to issue spf13/viper#380, can't use viper.GetStringSlice:
		splitList(envString("GITWATCH_EXCLUDE_BRANCHES")),
		"Comma-separated list of branches to exclude from watching. Entries using regular expression operators other than a dot match as expressions.")

	flags.StringSliceP(
		"paths",
		"p",
		splitList(envString("GITWATCH_PATHS")),
		"Comma-separated list of path prefixes or globs to report changes for")

	flags.Bool(
		"shallow",
		envBool("GITWATCH_SHALLOW"),
		"Clone only the branch heads instead of the full history")

	flags.Bool(
		"probe",
		envBool("GITWATCH_PROBE"),
		"List remote heads first and skip the clone when nothing moved")

	flags.String(
		"clone-dir",
		envString("GITWATCH_CLONE_DIR"),
		"Directory for temporary clones (default: system temp directory)")

	flags.StringP(
		"log-format",
		"l",
		viper.GetString("GITWATCH_LOG_FORMAT"),
		"Sets what logging format to use for console output. Possible values: Auto, LogFmt, Pretty, JSON",
	)

	flags.BoolP(
		"debug",
		"d",
		envBool("GITWATCH_DEBUG"),
		"Enable debug mode with verbose logging")

	flags.BoolP(
		"trace",
		"",
		envBool("GITWATCH_TRACE"),
		"Enable trace mode with very verbose logging")

	flags.String(
		"log-level",
		envString("GITWATCH_LOG_LEVEL"),
		"The maximum log level that will be written to STDERR. Possible values: panic, fatal, error, warn, info, debug or trace",
	)

	// https://no-color.org/
	flags.BoolP(
		"no-color",
		"",
		viper.IsSet("NO_COLOR"),
		"Disable ANSI color escape codes in log output")

	flags.BoolP(
		"no-startup-message",
		"",
		envBool("GITWATCH_NO_STARTUP_MESSAGE"),
		"Prevents gitwatch from sending a startup message")

	flags.Bool(
		"trace-spans",
		envBool("GITWATCH_TRACE_SPANS"),
		"Write OpenTelemetry spans of every observation to stderr")

	flags.Bool(
		"http-api-state",
		envBool("GITWATCH_HTTP_API_STATE"),
		"Serve the current repository state on /v1/state")

	flags.Bool(
		"http-api-update",
		envBool("GITWATCH_HTTP_API_UPDATE"),
		"Serve /v1/update to request an immediate observation")

	flags.Bool(
		"http-api-metrics",
		envBool("GITWATCH_HTTP_API_METRICS"),
		"Serve Prometheus metrics on /v1/metrics")

	flags.String(
		"http-api-host",
		envString("GITWATCH_HTTP_API_HOST"),
		"Host to bind the HTTP API to (default: all interfaces)")

	flags.String(
		"http-api-port",
		envString("GITWATCH_HTTP_API_PORT"),
		"Port to bind the HTTP API to (default: 8080)")

	flags.String(
		"http-api-token",
		envString("GITWATCH_HTTP_API_TOKEN"),
		"Sets an authentication token to HTTP API requests.")
}

// RegisterAuthFlags adds the repository credential flags.
func RegisterAuthFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.StringP(
		"username",
		"u",
		envString("GITWATCH_USERNAME"),
		"Username for HTTP basic authentication")

	flags.String(
		"password",
		envString("GITWATCH_PASSWORD"),
		"Password for HTTP basic authentication, or a file containing it")

	flags.String(
		"token",
		envString("GITWATCH_TOKEN"),
		"Access token for HTTP authentication, or a file containing it")

	flags.String(
		"ssh-user",
		envString("GITWATCH_SSH_USER"),
		"SSH user (default: git)")

	flags.String(
		"ssh-key",
		envString("GITWATCH_SSH_KEY"),
		"Path to the SSH private key")

	flags.String(
		"ssh-public-key",
		envString("GITWATCH_SSH_PUBLIC_KEY"),
		"Path to the SSH public key")

	flags.String(
		"ssh-passphrase",
		envString("GITWATCH_SSH_PASSPHRASE"),
		"Passphrase for the SSH private key, or a file containing it")
}

// RegisterNotificationFlags adds flags for configuring change notifications.
func RegisterNotificationFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	flags.String(
		"notifications-level",
		envString("GITWATCH_NOTIFICATIONS_LEVEL"),
		"The log level used for sending notifications. Possible values: panic, fatal, error, warn, info or debug",
	)

	flags.IntP(
		"notifications-delay",
		"",
		envInt("GITWATCH_NOTIFICATIONS_DELAY"),
		"Delay before sending notifications, expressed in seconds")

	flags.StringP(
		"notifications-hostname",
		"",
		envString("GITWATCH_NOTIFICATIONS_HOSTNAME"),
		"Custom hostname for notification titles")

	flags.String(
		"notification-template",
		envString("GITWATCH_NOTIFICATION_TEMPLATE"),
		"The shoutrrr text/template for the messages")

	flags.StringArray(
		"notification-url",
		envStringSlice("GITWATCH_NOTIFICATION_URL"),
		"The shoutrrr URL to send notifications to")

	flags.StringP(
		"notification-title-tag",
		"",
		envString("GITWATCH_NOTIFICATION_TITLE_TAG"),
		"Title prefix tag for notifications")

	flags.Bool("notification-skip-title",
		envBool("GITWATCH_NOTIFICATION_SKIP_TITLE"),
		"Do not pass the title param to notifications")

	flags.Bool(
		"notification-log-stdout",
		envBool("GITWATCH_NOTIFICATION_LOG_STDOUT"),
		"Write notification logs to stdout instead of logging (to stderr)")

	flags.StringP(
		"porcelain",
		"P",
		envString("GITWATCH_PORCELAIN"),
		`Write branch changes to stdout using a stable versioned format. Supported values: "v1"`)
}

// envString retrieves a string value from an environment variable via Viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable via Viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via Viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via Viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via Viper.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// splitList splits a comma or space separated list, dropping empty entries.
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return []string{}
	}

	parts := listSeparator.Split(strings.TrimSpace(value), -1)

	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

// SetDefaults configures default values for environment variables.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("GITWATCH_POLL_INTERVAL", DefaultPollInterval)
	viper.SetDefault("GITWATCH_OUTPUT", "text")
	viper.SetDefault("GITWATCH_HTTP_API_PORT", defaultHTTPAPIPort)
	viper.SetDefault("GITWATCH_NOTIFICATIONS_LEVEL", "info")
	viper.SetDefault("GITWATCH_LOG_LEVEL", "info")
	viper.SetDefault("GITWATCH_LOG_FORMAT", "auto")
}

// ReadAuthFlags collects the credential flags.
//
// Parameters:
//   - cmd: Command with registered auth flags.
//
// Returns:
//   - auth.Flags: Raw credential flag values.
//   - error: Non-nil if a flag is missing.
func ReadAuthFlags(cmd *cobra.Command) (auth.Flags, error) {
	flags := cmd.PersistentFlags()

	var (
		out auth.Flags
		err error
	)

	targets := []struct {
		name  string
		value *string
	}{
		{"username", &out.Username},
		{"password", &out.Password},
		{"token", &out.Token},
		{"ssh-user", &out.SSHUser},
		{"ssh-key", &out.SSHKeyPath},
		{"ssh-public-key", &out.SSHPublicKey},
		{"ssh-passphrase", &out.SSHPassphrase},
	}

	for _, target := range targets {
		if *target.value, err = flags.GetString(target.name); err != nil {
			return auth.Flags{}, fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return out, nil
}

// GetSecretsFromFiles replaces secret flag values with file contents when they reference files.
func GetSecretsFromFiles(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()

	for _, secret := range secretFlags {
		if err := getSecretFromFile(flags, secret); err != nil {
			return fmt.Errorf("failed to get secret from flag %s: %w", secret, err)
		}
	}

	return nil
}

// getSecretFromFile updates a flag's value with file contents if it references a file.
// Slice flags read one value per non-empty line. Unregistered flags are skipped.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	flag := flags.Lookup(secret)
	if flag == nil {
		return nil
	}

	if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
		oldValues := sliceValue.GetSlice()
		values := make([]string, 0, len(oldValues))

		for _, value := range oldValues {
			if value == "" || !isFilePath(value) {
				values = append(values, value)

				continue
			}

			file, err := os.Open(value)
			if err != nil {
				return fmt.Errorf("%w: %w", errOpenFileFailed, err)
			}

			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					values = append(values, line)
				}
			}

			if err := file.Close(); err != nil {
				return fmt.Errorf("%w: %w", errCloseFileFailed, err)
			}
		}

		if err := sliceValue.Replace(values); err != nil {
			return fmt.Errorf("%w: %w", errReplaceSliceFailed, err)
		}

		return nil
	}

	value := flag.Value.String()
	if value != "" && isFilePath(value) {
		content, err := os.ReadFile(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// isFilePath determines if a string likely represents an existing file.
// Strings with a colon past the drive letter position (URLs) are never files.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		return false
	}

	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

// ProcessFlagAliases synchronizes flag values based on helper flags and environment settings.
//
// Porcelain output adds a logger:// notification service with the matching
// template. Debug and trace raise the log level. A configured schedule clears
// the default interval.
//
// Returns:
//   - error: Non-nil for an unknown porcelain version or both schedule and interval set.
func ProcessFlagAliases(flags *pflag.FlagSet) error {
	porcelain, err := flags.GetString("porcelain")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if porcelain != "" {
		if porcelain != "v1" {
			return fmt.Errorf("%w %q, supported values: \"v1\"", errInvalidPorcelain, porcelain)
		}

		if err := appendFlagValue(flags, "notification-url", "logger://"); err != nil {
			return err
		}

		setFlagIfDefault(flags, "notification-log-stdout", "true")
		setFlagIfDefault(flags, "notification-template", fmt.Sprintf("porcelain.%s.summary-no-log", porcelain))
	}

	output, _ := flags.GetString("output")
	switch strings.ToLower(output) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %s", errInvalidOutput, output)
	}

	if err := processSchedule(flags); err != nil {
		return err
	}

	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// processSchedule rejects a schedule combined with an explicit interval. A
// schedule clears the interval, otherwise a missing interval gets the default.
func processSchedule(flags *pflag.FlagSet) error {
	if flags.Lookup("interval") == nil || flags.Lookup("schedule") == nil {
		return nil
	}

	schedule, _ := flags.GetString("schedule")
	interval, _ := flags.GetDuration("interval")

	// Workaround for Viper default swapping: compare against the default as well.
	intervalChanged := flags.Changed("interval") || (interval != 0 && interval != DefaultPollInterval)

	value := ""

	switch {
	case schedule != "" && intervalChanged:
		return errScheduleAndInterval
	case schedule != "":
		value = "0s"
	case interval == 0:
		value = DefaultPollInterval.String()
	default:
		return nil
	}

	if err := flags.Set("interval", value); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	return nil
}

// SetupLogging configures the global logger based on log-related flags.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if rawLogLevel == "" {
		rawLogLevel = logrus.InfoLevel.String()
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified format and color preference.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto", "":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true. Undefined flags are disabled.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)

	return err == nil && value
}

// appendFlagValue appends values to a slice-type flag.
func appendFlagValue(flags *pflag.FlagSet, name string, values ...string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		return fmt.Errorf("%w: %q", errInvalidFlagName, name)
	}

	flagValues, ok := flag.Value.(pflag.SliceValue)
	if !ok {
		return fmt.Errorf("%w: %q", errNotSliceValue, name)
	}

	for _, value := range values {
		if err := flagValues.Append(value); err != nil {
			return fmt.Errorf("%w: %q: %w", errSetFlagFailed, name, err)
		}
	}

	return nil
}

// setFlagIfDefault sets a flag's value if it hasn't been explicitly changed.
func setFlagIfDefault(flags *pflag.FlagSet, name string, value string) {
	if flags.Changed(name) {
		return
	}

	if err := flags.Set(name, value); err != nil {
		logrus.WithError(err).WithField("flag", name).Error("Failed to set flag")
	}
}

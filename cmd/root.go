package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	internalApi "github.com/nicholas-fedor/gitwatch/internal/api"
	"github.com/nicholas-fedor/gitwatch/internal/flags"
	"github.com/nicholas-fedor/gitwatch/internal/logging"
	"github.com/nicholas-fedor/gitwatch/internal/meta"
	"github.com/nicholas-fedor/gitwatch/internal/scheduling"
	"github.com/nicholas-fedor/gitwatch/internal/util"
	"github.com/nicholas-fedor/gitwatch/pkg/api/state"
	"github.com/nicholas-fedor/gitwatch/pkg/git"
	"github.com/nicholas-fedor/gitwatch/pkg/git/auth"
	"github.com/nicholas-fedor/gitwatch/pkg/git/client"
	"github.com/nicholas-fedor/gitwatch/pkg/metrics"
	"github.com/nicholas-fedor/gitwatch/pkg/notifications"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
	"github.com/nicholas-fedor/gitwatch/pkg/watch"
)

// tracerName identifies spans written with --trace-spans.
const tracerName = "github.com/nicholas-fedor/gitwatch"

// errInvalidAuth is returned when the credential flags cannot be combined.
var errInvalidAuth = errors.New("invalid authentication flags")

// notifier sends change notifications. It is initialized in preRun.
var notifier types.Notifier

// rootCmd is the gitwatch command.
var rootCmd = NewRootCommand()

// RunConfig holds the settings run derives from flags before starting.
type RunConfig struct {
	// Command is the executed command, providing access to the parsed flags.
	Command *cobra.Command
	// Repository is the canonical repository URL without embedded auth.
	Repository string
	// RunOnce performs a single observation and exits, set via --run-once.
	RunOnce bool
	// PreRun reports the current state before the first wait, set via --pre-run.
	PreRun bool
	// Output is the state format printed by --run-once and --pre-run.
	Output string
	// TraceSpans writes observation spans to stderr, set via --trace-spans.
	TraceSpans bool
	// EnableStateAPI serves /v1/state, set via --http-api-state.
	EnableStateAPI bool
	// EnableUpdateAPI serves /v1/update, set via --http-api-update.
	EnableUpdateAPI bool
	// EnableMetricsAPI serves /v1/metrics, set via --http-api-metrics.
	EnableMetricsAPI bool
	// APIToken is the bearer token for the HTTP API.
	APIToken string
	// APIHost is the host to bind the HTTP API to.
	APIHost string
	// APIPort is the port for the HTTP API.
	APIPort string
}

// NewRootCommand creates the gitwatch command.
//
// Returns:
//   - *cobra.Command: Command expecting exactly one repository URL.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gitwatch [flags] <repository-url>",
		Short: "Watches a remote git repository for new commits",
		Long: "\ngitwatch observes the branches of a remote git repository and reports new commits " +
			"and the paths they changed.\nMore information available at https://github.com/nicholas-fedor/gitwatch/.",
		PreRunE:      preRun,
		RunE:         run,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}
}

// init registers the gitwatch flags on the root command.
func init() {
	flags.SetDefaults()
	flags.RegisterSystemFlags(rootCmd)
	flags.RegisterAuthFlags(rootCmd)
	flags.RegisterNotificationFlags(rootCmd)
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun processes flag aliases, configures logging, resolves secrets from
// files and sets up the notifier.
func preRun(cmd *cobra.Command, _ []string) error {
	flagsSet := cmd.PersistentFlags()

	if err := flags.ProcessFlagAliases(flagsSet); err != nil {
		return fmt.Errorf("failed to process flag aliases: %w", err)
	}

	if err := flags.SetupLogging(flagsSet); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := flags.GetSecretsFromFiles(cmd); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	n, err := notifications.NewNotifier(cmd)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	notifier = n
	notifications.AddLogHook(notifier)

	return nil
}

// run builds the watch handler from flags and either observes once or watches
// until interrupted.
func run(c *cobra.Command, args []string) error {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if notifier == nil {
		notifier = noopNotifier{}
	}

	cfg, err := buildWatchConfig(c, args[0])
	if err != nil {
		notifier.Close()

		return err
	}

	runCfg := newRunConfig(c, cfg)

	logrus.WithFields(logrus.Fields{
		"repo":    runCfg.Repository,
		"shallow": cfg.Shallow(),
		"probe":   cfg.RemoteProbe(),
	}).Debug("Starting gitwatch")

	return runMain(ctx, runCfg, cfg)
}

// newRunConfig reads the run settings from the flags of c.
func newRunConfig(c *cobra.Command, cfg watch.Config) RunConfig {
	flagsSet := c.PersistentFlags()

	runOnce, _ := flagsSet.GetBool("run-once")
	preRunFlag, _ := flagsSet.GetBool("pre-run")
	output, _ := flagsSet.GetString("output")
	traceSpans, _ := flagsSet.GetBool("trace-spans")
	enableStateAPI, _ := flagsSet.GetBool("http-api-state")
	enableUpdateAPI, _ := flagsSet.GetBool("http-api-update")
	enableMetricsAPI, _ := flagsSet.GetBool("http-api-metrics")
	apiToken, _ := flagsSet.GetString("http-api-token")
	apiHost, _ := flagsSet.GetString("http-api-host")
	apiPort, _ := flagsSet.GetString("http-api-port")

	if apiPort == "" {
		apiPort = "8080"
	}

	return RunConfig{
		Command:          c,
		Repository:       cfg.Location().String(),
		RunOnce:          runOnce,
		PreRun:           preRunFlag,
		Output:           strings.ToLower(output),
		TraceSpans:       traceSpans,
		EnableStateAPI:   enableStateAPI,
		EnableUpdateAPI:  enableUpdateAPI,
		EnableMetricsAPI: enableMetricsAPI,
		APIToken:         apiToken,
		APIHost:          apiHost,
		APIPort:          apiPort,
	}
}

// buildWatchConfig translates the command flags into a watch configuration.
//
// Parameters:
//   - c: Command with the system and auth flags registered.
//   - rawURL: Repository argument.
//
// Returns:
//   - watch.Config: Validated configuration.
//   - error: Non-nil if the location, credentials or schedule are invalid.
func buildWatchConfig(c *cobra.Command, rawURL string) (watch.Config, error) {
	cfg, err := watch.NewConfig(rawURL)
	if err != nil {
		return watch.Config{}, err
	}

	authFlags, err := flags.ReadAuthFlags(c)
	if err != nil {
		return watch.Config{}, err
	}

	cred, err := auth.ParseCredentialFromFlags(authFlags)
	if err != nil {
		return watch.Config{}, fmt.Errorf("%w: %w", errInvalidAuth, err)
	}

	if cred != nil {
		if cfg.Credential() != nil {
			logrus.Warn("Credentials in the repository URL are overridden by the authentication flags")
		}

		cfg = cfg.WithCredential(cred)
	}

	if cfg.Credential() == nil && git.RequiresAuth(cfg.Location()) {
		logrus.WithField("repo", cfg.Location().String()).
			Info("No credential configured for an ssh repository, using the SSH agent")
	}

	flagsSet := c.PersistentFlags()

	excluded, _ := flagsSet.GetStringSlice("exclude-branches")
	paths, _ := flagsSet.GetStringSlice("paths")
	shallow, _ := flagsSet.GetBool("shallow")
	probe, _ := flagsSet.GetBool("probe")
	branch, _ := flagsSet.GetString("branch")
	commit, _ := flagsSet.GetString("commit")
	interval, _ := flagsSet.GetDuration("interval")
	schedule, _ := flagsSet.GetString("schedule")

	cfg = cfg.
		WithBranchFilter(util.FilterEmpty(excluded)...).
		WithPathFilter(util.FilterEmpty(paths)...).
		WithShallowClone(shallow).
		WithRemoteProbe(probe).
		WithStart(branch, commit)

	if schedule != "" {
		cfg = cfg.WithSchedule(schedule)
	} else {
		cfg = cfg.WithPollInterval(interval)
	}

	if err := cfg.Validate(); err != nil {
		return watch.Config{}, err
	}

	return cfg, nil
}

// runMain creates the handler and runs it in the mode selected by runCfg.
//
// Parameters:
//   - ctx: Context controlling the run.
//   - runCfg: Run settings.
//   - cfg: Watch configuration.
//
// Returns:
//   - error: Setup, observation or watch loop failure.
func runMain(ctx context.Context, runCfg RunConfig, cfg watch.Config) error {
	cloneDir, _ := runCfg.Command.PersistentFlags().GetString("clone-dir")

	opts := []watch.Option{watch.WithMetrics(metrics.Default())}

	if runCfg.TraceSpans {
		provider, err := newTracerProvider(os.Stderr)
		if err != nil {
			notifier.Close()

			return err
		}

		defer func() {
			if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logrus.WithError(err).Warn("Failed to flush trace spans")
			}
		}()

		opts = append(opts, watch.WithTracer(provider.Tracer(tracerName)))
	}

	var trigger chan struct{}
	if runCfg.EnableUpdateAPI && !runCfg.RunOnce {
		trigger = make(chan struct{}, 1)
		opts = append(opts, watch.WithTrigger(trigger))
	}

	handler, err := watch.NewHandler(ctx, cfg, client.NewClient(client.WithTempRoot(cloneDir)), opts...)
	if err != nil {
		logNotify("Failed to create watch handler", err)
		notifier.Close()

		return err
	}

	if runCfg.RunOnce {
		return runOnce(ctx, runCfg, handler, os.Stdout)
	}

	if err := establishBaseline(ctx, handler); err != nil {
		logNotify("Initial observation failed", err)
		notifier.Close()

		return err
	}

	if err := internalApi.SetupAndStartAPI(ctx, runCfg.apiConfig(), handler, trigger); err != nil {
		notifier.Close()

		return err
	}

	onChange := newChangeReporter(runCfg, notifier, os.Stdout, handler)

	writeStartup := func(next time.Time) {
		logging.WriteStartupMessage(runCfg.Command, logging.StartupInfo{
			Version:    meta.Version,
			Repository: runCfg.Repository,
			Credential: cfg.Credential(),
			Filtering:  handler.FilterDescription(),
			NextRun:    next,
		}, notifier)
	}

	err = scheduling.RunWatch(ctx, handler, runCfg.PreRun, onChange, writeStartup, notifier)
	if err != nil {
		logrus.WithError(err).Error("Watch ended")
	}

	return err
}

// baselineObserver is the part of watch.Handler needed to record a first state.
type baselineObserver interface {
	HasState() bool
	Observe(ctx context.Context) (types.RepoState, error)
}

// establishBaseline records the current state unless a start anchor already did.
//
// Branches present at startup are the baseline, so the first watch cycle only
// reports commits pushed after it.
func establishBaseline(ctx context.Context, h baselineObserver) error {
	if h.HasState() {
		return nil
	}

	state, err := h.Observe(ctx)
	if err != nil {
		return err
	}

	logrus.WithField("branches", len(state.BranchHeads)).Debug("Recorded baseline state")

	return nil
}

// apiConfig returns the HTTP API settings.
func (c RunConfig) apiConfig() internalApi.Config {
	return internalApi.Config{
		Host:          c.APIHost,
		Port:          c.APIPort,
		Token:         c.APIToken,
		Repository:    c.Repository,
		EnableState:   c.EnableStateAPI,
		EnableUpdate:  c.EnableUpdateAPI,
		EnableMetrics: c.EnableMetricsAPI,
	}
}

// runOnce performs a single observation and prints the state.
func runOnce(ctx context.Context, runCfg RunConfig, handler *watch.Handler, out io.Writer) error {
	defer notifier.Close()

	logging.LogScheduleInfo(notifications.LocalLog, runCfg.Command, time.Time{})

	repoState, err := handler.Observe(ctx)
	if err != nil {
		logNotify("Observation failed", err)

		return err
	}

	return writeState(out, runCfg.Output, runCfg.Repository, repoState)
}

// newChangeReporter returns the callback that notifies about every branch change.
//
// A nil change marks the pre-run report, which prints the state instead.
// Branches that disappear between reports are logged.
//
// Parameters:
//   - runCfg: Run settings providing the repository and output format.
//   - n: Notifier receiving each change.
//   - out: Writer for the pre-run state.
//   - reader: Source of the branches known before the first report, may be nil.
//
// Returns:
//   - watch.ChangeFunc: Callback for scheduling.RunWatch.
func newChangeReporter(
	runCfg RunConfig,
	n types.Notifier,
	out io.Writer,
	reader state.Reader,
) watch.ChangeFunc {
	var known []string

	if reader != nil {
		if current, err := reader.CurrentState(); err == nil {
			known = current.BranchHeads.Names()
		}
	}

	return func(change *types.BranchChange, repoState types.RepoState) {
		names := repoState.BranchHeads.Names()
		if removed := util.SliceSubtract(known, names); len(removed) > 0 {
			logrus.WithField("branches", removed).Info("Branches removed from repository")
		}

		known = names

		if change == nil {
			if err := writeState(out, runCfg.Output, runCfg.Repository, repoState); err != nil {
				logrus.WithError(err).Warn("Failed to write repository state")
			}

			return
		}

		n.Notify(runCfg.Repository, *change, repoState)
	}
}

// stateDocument is the JSON form of a printed state.
type stateDocument struct {
	Repo  string          `json:"repo"`
	State types.RepoState `json:"state"`
}

// writeState prints repoState as text or JSON.
//
// Parameters:
//   - w: Destination.
//   - format: "json", or "text" and "" for the human readable form.
//   - repo: Repository URL.
//   - repoState: State to print.
//
// Returns:
//   - error: Non-nil if writing fails.
func writeState(w io.Writer, format, repo string, repoState types.RepoState) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(stateDocument{Repo: repo, State: repoState}); err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}

		return nil
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Repository: %s\n", repo)
	fmt.Fprintf(&b, "Observed at: %s\n", repoState.ObservedAt.Format(time.RFC3339))

	for _, name := range repoState.BranchHeads.Names() {
		head := repoState.BranchHeads[name]

		fmt.Fprintf(&b, "\n%s %s", name, head.ID.ShortID())

		if subject, _, _ := strings.Cut(head.Message, "\n"); subject != "" {
			fmt.Fprintf(&b, " %s", subject)
		}

		b.WriteString("\n")

		for _, path := range repoState.PathChanges[name] {
			fmt.Fprintf(&b, "  %s\n", path)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

// newTracerProvider creates a tracer provider that writes spans to w as they end.
func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), nil
}

// logNotify logs err and forwards it to the notification services.
func logNotify(msg string, err error) {
	entry := logrus.WithError(err).WithField("notify", "yes")
	if hint := errorHint(err); hint != "" {
		entry = entry.WithField("hint", hint)
	}

	entry.Error(msg)
}

// errorHint suggests a remedy for provider failures the user can fix.
func errorHint(err error) string {
	switch {
	case types.IsAuthError(err):
		return "check the repository credentials (--token, --username/--password or --ssh-key)"
	case types.IsNetworkError(err):
		return "check that the repository host is reachable"
	default:
		return ""
	}
}

// noopNotifier is used when run is called without preRun.
type noopNotifier struct{}

func (noopNotifier) Notify(string, types.BranchChange, types.RepoState) {}
func (noopNotifier) GetNames() []string                                 { return nil }
func (noopNotifier) GetURLs() []string                                  { return nil }
func (noopNotifier) Close()                                             {}

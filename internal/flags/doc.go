// Package flags manages command-line flags and environment variables for gitwatch configuration.
// It registers the watch, credential and notification flags on a Cobra command and binds
// each of them to a GITWATCH_* environment variable through Viper.
//
// Key components:
//   - RegisterSystemFlags: Adds watch, output, logging and HTTP API flags.
//   - RegisterAuthFlags: Adds repository credential flags.
//   - RegisterNotificationFlags: Adds notification settings.
//   - ProcessFlagAliases: Resolves porcelain, schedule and log level aliases.
//   - SetupLogging: Configures logrus based on flags.
//
// Usage example:
//
//	cmd := &cobra.Command{}
//	flags.SetDefaults()
//	flags.RegisterSystemFlags(cmd)
//	err := flags.SetupLogging(cmd.PersistentFlags())
//	if err != nil {
//	    logrus.WithError(err).Fatal("Logging setup failed")
//	}
package flags

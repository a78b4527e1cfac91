// Package cmd contains the command-line interface for gitwatch.
// It provides the root command, which watches one remote repository and reports
// new commits through notifications, the HTTP API and standard output.
//
// Key components:
//   - rootCmd: Root command running a one time observation or the watch loop.
//   - RunConfig: Struct holding the run settings derived from flags.
//
// Usage examples:
//   - Run the CLI from main.go:
//     cmd.Execute()
//   - Print the state of a repository once:
//     gitwatch --run-once --output json https://github.com/nicholas-fedor/gitwatch.git
//
// The package integrates the flags, watch, scheduling and notifications packages,
// using Cobra for CLI parsing and logrus for logging.
package cmd

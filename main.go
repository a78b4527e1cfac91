package main

import (
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/gitwatch/cmd"
)

// init sets the log level used until the command configures logging from flags.
func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

// main serves as the entry point for gitwatch.
func main() {
	cmd.Execute()
}

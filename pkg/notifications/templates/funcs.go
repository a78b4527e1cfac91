// Package templates provides functions for use in gitwatch notification templates.
//
// Funcs is installed on every notification template. Besides case conversion
// and JSON output it offers helpers for commit messages and path lists, which
// the built-in templates use to keep messages short.
package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Funcs defines a set of utility functions for use in notification templates.
var Funcs = template.FuncMap{
	"ToUpper":   strings.ToUpper,
	"ToLower":   strings.ToLower,
	"ToJSON":    toJSON,
	"Title":     cases.Title(language.AmericanEnglish).String,
	"Join":      strings.Join,
	"Subject":   subject,
	"Limit":     limit,
	"Remaining": remaining,
}

// subject returns the first non-empty line of a commit message.
func subject(message string) string {
	for line := range strings.SplitSeq(message, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}

	return ""
}

// limit returns at most n leading paths. Its argument order allows {{ .Paths | Limit 10 }}.
func limit(n int, paths []string) []string {
	if n < 0 {
		n = 0
	}

	if len(paths) <= n {
		return paths
	}

	return paths[:n]
}

// remaining counts the paths limit leaves out.
func remaining(n int, paths []string) int {
	return len(paths) - len(limit(n, paths))
}

// toJSON marshals a value to an indented JSON string.
// If marshaling fails, it logs a warning and returns the error text.
func toJSON(v any) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"notify": "no",
			"type":   fmt.Sprintf("%T", v),
		}).Warn("Failed to marshal JSON in notification template")

		return fmt.Sprintf("failed to marshal JSON in notification template: %v", err)
	}

	return string(bytes)
}

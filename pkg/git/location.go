// Package git parses repository locations for gitwatch.
package git

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	gitAuth "github.com/nicholas-fedor/gitwatch/pkg/git/auth"
	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// Predefined error variables for consistent error handling.
var (
	ErrEmptyLocation     = errors.New("repository location is empty")
	ErrUnsupportedScheme = errors.New("unsupported repository URL scheme")
	ErrMissingHost       = errors.New("repository URL has no host")
	ErrMissingPath       = errors.New("repository URL has no path")
)

// scpLikePattern matches "user@host:path" and "host:path" ssh shorthands.
var scpLikePattern = regexp.MustCompile(`^(?:([^@/\s]+)@)?([^@:/\s]+):([^\s]+)$`)

// windowsDrivePattern matches "C:\..." and "C:/..." so they are not mistaken for scp-like URLs.
var windowsDrivePattern = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// EmbeddedAuth holds userinfo stripped from a repository URL.
type EmbeddedAuth struct {
	Username string
	Password string
}

// HasPassword reports whether the URL carried a password.
func (a EmbeddedAuth) HasPassword() bool {
	return a.Password != ""
}

// Credential converts embedded userinfo to a credential.
//
// A username without a password is an access token ("https://<token>@host/...").
// Returns nil when the URL carried no userinfo.
func (a EmbeddedAuth) Credential() types.Credential {
	switch {
	case a.HasPassword():
		return types.UserPasswordCredential{Username: a.Username, Password: a.Password}
	case a.Username != "":
		return types.UserPasswordCredential{Username: gitAuth.TokenUsername, Password: a.Username}
	default:
		return nil
	}
}

// ParseLocation parses a repository URL, scp-like address or local path.
//
// Any userinfo embedded in the URL is removed from the returned location and
// reported separately. For ssh transports the username is kept on the location
// because the transport needs it; the password never is.
//
// Parameters:
//   - raw: Repository reference as supplied by the user.
//
// Returns:
//   - types.RepositoryLocation: Canonical location without secrets.
//   - EmbeddedAuth: Userinfo found in the URL.
//   - error: Non-nil if the reference cannot be parsed.
func ParseLocation(raw string) (types.RepositoryLocation, EmbeddedAuth, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.RepositoryLocation{}, EmbeddedAuth{}, ErrEmptyLocation
	}

	switch {
	case strings.Contains(raw, "://"):
		return parseURL(raw)
	case !windowsDrivePattern.MatchString(raw) && scpLikePattern.MatchString(raw):
		return parseSCPLike(raw), EmbeddedAuth{}, nil
	default:
		return parseLocalPath(raw)
	}
}

// parseURL handles locations with an explicit scheme.
func parseURL(raw string) (types.RepositoryLocation, EmbeddedAuth, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		// url.Error repeats the raw URL, which may carry a password.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return types.RepositoryLocation{}, EmbeddedAuth{}, fmt.Errorf(
			"failed to parse repository URL: %w",
			err,
		)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case types.SchemeHTTPS, types.SchemeHTTP, types.SchemeSSH, types.SchemeGit, types.SchemeFile:
	default:
		return types.RepositoryLocation{}, EmbeddedAuth{}, fmt.Errorf(
			"%w: %q",
			ErrUnsupportedScheme,
			parsed.Scheme,
		)
	}

	var auth EmbeddedAuth
	if parsed.User != nil {
		auth.Username = parsed.User.Username()
		auth.Password, _ = parsed.User.Password()
	}

	location := types.RepositoryLocation{
		Scheme: scheme,
		Host:   strings.ToLower(parsed.Hostname()),
		Port:   parsed.Port(),
		Path:   parsed.Path,
	}

	switch scheme {
	case types.SchemeSSH:
		// The ssh user travels on the location; only a password is a credential.
		location.User = auth.Username
		if !auth.HasPassword() {
			auth = EmbeddedAuth{}
		}
	case types.SchemeGit, types.SchemeFile:
		auth = EmbeddedAuth{}
	}

	if scheme != types.SchemeFile && location.Host == "" {
		return types.RepositoryLocation{}, EmbeddedAuth{}, fmt.Errorf(
			"%w: %s",
			ErrMissingHost,
			location,
		)
	}

	if strings.Trim(location.Path, "/") == "" {
		return types.RepositoryLocation{}, EmbeddedAuth{}, fmt.Errorf(
			"%w: %s",
			ErrMissingPath,
			location,
		)
	}

	logrus.WithFields(logrus.Fields{
		"repo":           location.String(),
		"embedded_user":  auth.Username != "",
		"embedded_token": auth.Username != "" && !auth.HasPassword(),
		"embedded_pass":  auth.HasPassword(),
	}).Debug("Parsed repository URL")

	return location, auth, nil
}

// parseSCPLike handles "git@github.com:owner/repo.git".
func parseSCPLike(raw string) types.RepositoryLocation {
	parts := scpLikePattern.FindStringSubmatch(raw)

	return types.RepositoryLocation{
		Scheme: types.SchemeSSH,
		Host:   strings.ToLower(parts[2]),
		Path:   parts[3],
		User:   parts[1],
		SCP:    true,
	}
}

// parseLocalPath turns a filesystem path into a file location.
func parseLocalPath(raw string) (types.RepositoryLocation, EmbeddedAuth, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return types.RepositoryLocation{}, EmbeddedAuth{}, fmt.Errorf(
			"failed to resolve repository path %s: %w",
			raw,
			err,
		)
	}

	return types.RepositoryLocation{
		Scheme: types.SchemeFile,
		Path:   filepath.ToSlash(abs),
	}, EmbeddedAuth{}, nil
}

// RequiresAuth reports whether the transport for a location always authenticates.
//
// ssh locations without a configured credential fall back to the SSH agent.
func RequiresAuth(location types.RepositoryLocation) bool {
	return location.Scheme == types.SchemeSSH
}

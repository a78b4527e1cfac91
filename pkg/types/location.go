package types

import (
	"net"
	"net/url"
	"strings"
)

// Location schemes recognised by the parser.
const (
	SchemeHTTPS = "https"
	SchemeHTTP  = "http"
	SchemeSSH   = "ssh"
	SchemeGit   = "git"
	SchemeFile  = "file"
)

// RepositoryLocation is a canonical reference to a remote repository.
//
// Embedded credentials are never stored here; see git.ParseLocation.
type RepositoryLocation struct {
	Scheme string
	Host   string
	Port   string
	Path   string
	User   string // Username for ssh transports, never a password.
	SCP    bool   // Written in scp-like "user@host:path" form.
}

// String returns the canonical URL used by the transport.
func (l RepositoryLocation) String() string {
	if l.SCP {
		var b strings.Builder
		if l.User != "" {
			b.WriteString(l.User)
			b.WriteByte('@')
		}

		b.WriteString(l.Host)
		b.WriteByte(':')
		b.WriteString(l.Path)

		return b.String()
	}

	u := url.URL{Scheme: l.Scheme, Path: l.Path}

	if l.Scheme == SchemeFile {
		return u.String()
	}

	switch {
	case l.Port != "":
		u.Host = net.JoinHostPort(l.Host, l.Port)
	case strings.Contains(l.Host, ":"):
		u.Host = "[" + l.Host + "]"
	default:
		u.Host = l.Host
	}

	if l.User != "" && l.Scheme == SchemeSSH {
		u.User = url.User(l.User)
	}

	return u.String()
}

// IsZero reports whether the location has not been set.
func (l RepositoryLocation) IsZero() bool {
	return l.Scheme == "" && l.Host == "" && l.Path == ""
}

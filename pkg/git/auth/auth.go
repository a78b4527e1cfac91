// Package auth provides Git authentication handling for gitwatch.
package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// DefaultSSHUser is the SSH user assumed when none is configured.
const DefaultSSHUser = "git"

// TokenUsername is the username paired with access tokens (GitHub/GitLab convention).
const TokenUsername = "token"

// Predefined error variables for consistent error handling.
var (
	ErrUnsupportedCredential = errors.New("unsupported credential type")
	ErrSSHKeyPathEmpty       = errors.New("SSH key file path is empty")
	ErrBasicAuthIncomplete   = errors.New(
		"basic authentication requires both username and password",
	)
	ErrSSHKeyRequired      = errors.New("SSH authentication requires a private key")
	ErrConflictingAuthFlag = errors.New("only one authentication method can be configured")
)

// CreateAuthMethod creates a go-git authentication method from a credential.
//
// A nil credential yields a nil method, which go-git treats as anonymous access.
func CreateAuthMethod(cred types.Credential) (transport.AuthMethod, error) {
	switch c := cred.(type) {
	case nil:
		return nil, nil //nolint:nilnil // No authentication needed is valid
	case types.UserPasswordCredential:
		return createBasicAuth(c.Username, c.Password), nil
	case types.SSHKeyCredential:
		return createSSHAuth(c)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedCredential, cred)
	}
}

// createBasicAuth creates username/password authentication.
func createBasicAuth(username, password string) transport.AuthMethod {
	if username == "" || password == "" {
		return nil
	}

	return &http.BasicAuth{
		Username: username,
		Password: password,
	}
}

// createSSHAuth creates SSH key authentication from a key file.
func createSSHAuth(cred types.SSHKeyCredential) (transport.AuthMethod, error) {
	sshKey, err := LoadSSHKeyFromFile(cred.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	user := cred.Username
	if user == "" {
		user = DefaultSSHUser
	}

	publicKeys, err := ssh.NewPublicKeys(user, sshKey, cred.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public keys: %w", err)
	}

	return publicKeys, nil
}

// LoadSSHKeyFromFile loads an SSH private key from a file.
func LoadSSHKeyFromFile(filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, ErrSSHKeyPathEmpty
	}

	keyData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file %s: %w", filePath, err)
	}

	if len(keyData) == 0 {
		return nil, ErrSSHKeyRequired
	}

	return keyData, nil
}

// Flags holds the raw authentication flag values.
type Flags struct {
	Token         string
	Username      string
	Password      string
	SSHUser       string
	SSHKeyPath    string
	SSHPublicKey  string
	SSHPassphrase string
}

// ParseCredentialFromFlags creates a credential from command-line flags.
//
// Returns:
//   - types.Credential: The configured credential, or nil for anonymous access.
//   - error: Non-nil if the flags are incomplete or conflicting.
func ParseCredentialFromFlags(flags Flags) (types.Credential, error) {
	configured := 0

	if flags.Token != "" {
		configured++
	}

	if flags.Username != "" || flags.Password != "" {
		configured++
	}

	if flags.SSHKeyPath != "" {
		configured++
	}

	if configured > 1 {
		return nil, ErrConflictingAuthFlag
	}

	// Determine credential variant based on provided flags
	switch {
	case flags.Token != "":
		return types.UserPasswordCredential{Username: TokenUsername, Password: flags.Token}, nil
	case flags.Username != "" || flags.Password != "":
		cred := types.UserPasswordCredential{Username: flags.Username, Password: flags.Password}

		return cred, ValidateCredential(cred)
	case flags.SSHKeyPath != "":
		user := flags.SSHUser
		if user == "" {
			user = DefaultSSHUser
		}

		cred := types.SSHKeyCredential{
			Username:       user,
			PublicKeyPath:  flags.SSHPublicKey,
			PrivateKeyPath: flags.SSHKeyPath,
			Passphrase:     flags.SSHPassphrase,
		}

		return cred, ValidateCredential(cred)
	default:
		return nil, nil //nolint:nilnil // Anonymous access
	}
}

// ValidateCredential checks if the credential is complete.
func ValidateCredential(cred types.Credential) error {
	switch c := cred.(type) {
	case nil:
		// No validation needed for no auth
	case types.UserPasswordCredential:
		if c.Username == "" || c.Password == "" {
			return ErrBasicAuthIncomplete
		}
	case types.SSHKeyCredential:
		if c.PrivateKeyPath == "" {
			return ErrSSHKeyRequired
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCredential, cred)
	}

	return nil
}

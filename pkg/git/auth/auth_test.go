package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cryptossh "golang.org/x/crypto/ssh"

	"github.com/nicholas-fedor/gitwatch/pkg/types"
)

// writeTestKey generates an unencrypted ed25519 private key in OpenSSH format.
func writeTestKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := cryptossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path
}

func TestCreateAuthMethod(t *testing.T) {
	keyPath := writeTestKey(t)

	tests := []struct {
		name     string
		cred     types.Credential
		wantNil  bool
		wantType any
		wantErr  error
	}{
		{
			name:    "no credential",
			cred:    nil,
			wantNil: true,
		},
		{
			name:     "basic auth",
			cred:     types.UserPasswordCredential{Username: "user", Password: "pass"},
			wantType: &http.BasicAuth{},
		},
		{
			name:    "basic auth missing password",
			cred:    types.UserPasswordCredential{Username: "user"},
			wantNil: true,
		},
		{
			name:     "ssh auth",
			cred:     types.SSHKeyCredential{Username: "git", PrivateKeyPath: keyPath},
			wantType: &ssh.PublicKeys{},
		},
		{
			name:    "ssh auth empty key path",
			cred:    types.SSHKeyCredential{Username: "git"},
			wantErr: ErrSSHKeyPathEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := CreateAuthMethod(tt.cred)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, auth)

				return
			}

			require.NotNil(t, auth)
			assert.IsType(t, tt.wantType, auth)
		})
	}
}

func TestCreateSSHAuth_DefaultUser(t *testing.T) {
	keyPath := writeTestKey(t)

	auth, err := createSSHAuth(types.SSHKeyCredential{PrivateKeyPath: keyPath})
	require.NoError(t, err)

	keys, ok := auth.(*ssh.PublicKeys)
	require.True(t, ok)
	assert.Equal(t, DefaultSSHUser, keys.User)
}

func TestCreateSSHAuth_InvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := createSSHAuth(types.SSHKeyCredential{PrivateKeyPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create SSH public keys")
}

func TestLoadSSHKeyFromFile(t *testing.T) {
	t.Run("empty file path", func(t *testing.T) {
		key, err := LoadSSHKeyFromFile("")
		require.ErrorIs(t, err, ErrSSHKeyPathEmpty)
		assert.Nil(t, key)
	})

	t.Run("nonexistent file", func(t *testing.T) {
		key, err := LoadSSHKeyFromFile("/nonexistent/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read SSH key file")
		assert.Nil(t, key)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := LoadSSHKeyFromFile(path)
		require.ErrorIs(t, err, ErrSSHKeyRequired)
	})

	t.Run("valid file", func(t *testing.T) {
		key, err := LoadSSHKeyFromFile(writeTestKey(t))
		require.NoError(t, err)
		assert.NotEmpty(t, key)
	})
}

func TestParseCredentialFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		flags    Flags
		expected types.Credential
		wantErr  error
	}{
		{
			name:     "no flags",
			flags:    Flags{},
			expected: nil,
		},
		{
			name:     "token",
			flags:    Flags{Token: "abc"},
			expected: types.UserPasswordCredential{Username: "token", Password: "abc"},
		},
		{
			name:     "username and password",
			flags:    Flags{Username: "user", Password: "pass"},
			expected: types.UserPasswordCredential{Username: "user", Password: "pass"},
		},
		{
			name:    "username without password",
			flags:   Flags{Username: "user"},
			wantErr: ErrBasicAuthIncomplete,
		},
		{
			name:  "ssh key with default user",
			flags: Flags{SSHKeyPath: "/keys/id", SSHPassphrase: "secret"},
			expected: types.SSHKeyCredential{
				Username:       "git",
				PrivateKeyPath: "/keys/id",
				Passphrase:     "secret",
			},
		},
		{
			name:    "token and ssh key conflict",
			flags:   Flags{Token: "abc", SSHKeyPath: "/keys/id"},
			wantErr: ErrConflictingAuthFlag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := ParseCredentialFromFlags(tt.flags)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cred)
		})
	}
}

func TestValidateCredential(t *testing.T) {
	require.NoError(t, ValidateCredential(nil))
	require.NoError(t, ValidateCredential(types.SSHKeyCredential{PrivateKeyPath: "/k"}))
	require.ErrorIs(t, ValidateCredential(types.SSHKeyCredential{}), ErrSSHKeyRequired)
	require.ErrorIs(
		t,
		ValidateCredential(types.UserPasswordCredential{Password: "p"}),
		ErrBasicAuthIncomplete,
	)
}

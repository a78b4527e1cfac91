package types

import "fmt"

// redactedValue replaces secret material in diagnostic output.
const redactedValue = "<redacted>"

// Credential is the closed set of authentication variants accepted by a Provider.
//
// The only implementations are SSHKeyCredential and UserPasswordCredential.
// Both format themselves without secrets for %v, %+v, %s and %#v, so a
// Credential can be passed to logrus fields directly.
type Credential interface {
	fmt.Stringer
	fmt.GoStringer

	// Redacted returns a description of the credential that omits secrets.
	Redacted() string

	isCredential()
}

// SSHKeyCredential authenticates with an SSH private key on disk.
type SSHKeyCredential struct {
	Username       string // SSH user, usually "git"
	PublicKeyPath  string // Optional public key path
	PrivateKeyPath string // Private key path
	Passphrase     string // Optional private key passphrase
}

// UserPasswordCredential authenticates with a username and password or token.
type UserPasswordCredential struct {
	Username string
	Password string
}

func (SSHKeyCredential) isCredential()       {}
func (UserPasswordCredential) isCredential() {}

// Redacted returns the SSH credential description without the passphrase.
func (c SSHKeyCredential) Redacted() string {
	passphrase := "none"
	if c.Passphrase != "" {
		passphrase = redactedValue
	}

	return fmt.Sprintf(
		"ssh-key(user=%s, key=%s, passphrase=%s)",
		c.Username,
		c.PrivateKeyPath,
		passphrase,
	)
}

// String implements fmt.Stringer with the redacted form.
func (c SSHKeyCredential) String() string { return c.Redacted() }

// GoString implements fmt.GoStringer with the redacted form.
func (c SSHKeyCredential) GoString() string { return c.Redacted() }

// Format keeps %+v and %#v from printing struct fields.
func (c SSHKeyCredential) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(c.Redacted())) }

// MarshalText keeps encoders such as encoding/json from writing the passphrase.
func (c SSHKeyCredential) MarshalText() ([]byte, error) { return []byte(c.Redacted()), nil }

// Redacted returns the user/password description without the password.
func (c UserPasswordCredential) Redacted() string {
	return fmt.Sprintf("user-password(user=%s, password=%s)", c.Username, redactedValue)
}

// String implements fmt.Stringer with the redacted form.
func (c UserPasswordCredential) String() string { return c.Redacted() }

// GoString implements fmt.GoStringer with the redacted form.
func (c UserPasswordCredential) GoString() string { return c.Redacted() }

// Format keeps %+v and %#v from printing struct fields.
func (c UserPasswordCredential) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(c.Redacted()))
}

// MarshalText keeps encoders such as encoding/json from writing the password.
func (c UserPasswordCredential) MarshalText() ([]byte, error) {
	return []byte(c.Redacted()), nil
}

// RedactCredential returns the redacted form of cred, or "none" when nil.
func RedactCredential(cred Credential) string {
	if cred == nil {
		return "none"
	}

	return cred.Redacted()
}

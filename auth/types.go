package auth

import (
	"time"

	"github.com/fahmaliyi/keyvault/vault"
	"github.com/pkg/errors"
)

var (
	ErrPasswordPolicy   = errors.New("auth: password rejected by policy")
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	ErrLocked           = errors.New("auth: locked after too many failed attempts")
)

const DefaultMaxAttempts = 3

// State is the position of a Session in its authentication lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateLocked:
		return "locked"
	}
	return "unknown"
}

// Prompter is the interactive side of a Session.
type Prompter interface {
	// ReadPassword reads a line without echoing it.
	ReadPassword(prompt string) ([]byte, error)
	ReadLine(prompt string) (string, error)
	// Notify shows a message to the user.
	Notify(msg string)
}

// Opener builds a Vault from a password; vault.Open in production.
type Opener func(password []byte, path string, opts ...vault.Option) (*vault.Vault, error)

type Config struct {
	Policy      Policy
	MaxAttempts int
	// AttemptInterval is the minimum time between two password checks of an
	// existing vault. Zero disables pacing.
	AttemptInterval time.Duration
	Scheme          vault.Scheme
	// RequiredSecrets are offered for entry by EnsureSecrets when missing.
	RequiredSecrets []string
}

func DefaultConfig() Config {
	return Config{
		Policy:          DefaultPolicy(),
		MaxAttempts:     DefaultMaxAttempts,
		Scheme:          vault.SchemeFernet,
		RequiredSecrets: []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
	}
}

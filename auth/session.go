package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fahmaliyi/keyvault/vault"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Session gates access to one vault file behind a password. It starts
// unauthenticated, becomes authenticated once a password is accepted and
// locks for good after Config.MaxAttempts consecutive failures.
//
// Create one Session per process and hand it to every collaborator that
// needs secrets.
type Session struct {
	id       string
	path     string
	cfg      Config
	prompter Prompter
	logger   *slog.Logger
	open     Opener
	limiter  *rate.Limiter

	mu       sync.Mutex
	state    State
	attempts int
	vault    *vault.Vault
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOpener replaces vault.Open.
func WithOpener(o Opener) Option {
	return func(s *Session) {
		if o != nil {
			s.open = o
		}
	}
}

func NewSession(path string, cfg Config, prompter Prompter, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Policy.MinLength <= 0 && cfg.Policy.Symbols == "" {
		cfg.Policy = def.Policy
	}
	if cfg.Scheme == "" {
		cfg.Scheme = def.Scheme
	}

	limit := rate.Inf
	if cfg.AttemptInterval > 0 {
		limit = rate.Every(cfg.AttemptInterval)
	}

	s := &Session{
		id:       uuid.NewString(),
		path:     path,
		cfg:      cfg,
		prompter: prompter,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		open:     vault.Open,
		limiter:  rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session_id", s.id))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Path() string { return s.path }

func (s *Session) Policy() Policy { return s.cfg.Policy }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Authenticated reports whether the session holds an open vault.
func (s *Session) Authenticated() bool {
	return s.State() == StateAuthenticated
}

// Authenticate runs first-run setup when the vault file has no salt yet and
// a password check otherwise. It returns nil at once when the session is
// already authenticated and ErrLocked, without prompting, once locked.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
		return nil
	case StateLocked:
		return ErrLocked
	}

	initialized, err := s.initialized()
	if err != nil {
		return err
	}

	s.state = StateAuthenticating
	if initialized {
		err = s.login(ctx)
	} else {
		err = s.setup(ctx)
	}
	if s.state == StateAuthenticating {
		s.state = StateUnauthenticated
	}
	return err
}

// initialized reports whether a password has been set for the vault file.
// A salt line alone is not enough: until a record exists there is nothing
// a password could be checked against, so first-run setup runs again.
func (s *Session) initialized() (bool, error) {
	hasSalt, err := vault.HasSalt(s.path)
	if err != nil || !hasSalt {
		return false, err
	}
	return vault.HasRecords(s.path)
}

func (s *Session) setup(ctx context.Context) error {
	s.logger.Info("vault has no password yet, starting setup", slog.String("path", s.path))
	s.prompter.Notify("No vault found. Set up a new password.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pw, err := s.prompter.ReadPassword("Enter your password: ")
		if err != nil {
			return errors.Wrap(err, "auth: read password")
		}
		if err := s.cfg.Policy.Validate(pw); err != nil {
			vault.Zero(pw)
			var pe *PolicyError
			if !errors.As(err, &pe) {
				return err
			}
			s.logger.Info("password rejected by policy", slog.String("reason", pe.Reason))
			s.prompter.Notify("Password " + pe.Reason + ".")
			continue
		}

		confirm, err := s.prompter.ReadPassword("Confirm your password: ")
		if err != nil {
			vault.Zero(pw)
			return errors.Wrap(err, "auth: read password")
		}
		match := subtle.ConstantTimeCompare(pw, confirm) == 1
		vault.Zero(confirm)
		if !match {
			vault.Zero(pw)
			if s.fail("Passwords do not match") {
				return ErrLocked
			}
			continue
		}

		v, err := s.open(pw, s.path, s.vaultOptions()...)
		if err != nil {
			return err
		}
		err = v.Verify()
		if errors.Is(err, vault.ErrNoRecords) {
			err = v.Initialize()
		}
		if err != nil {
			v.Close()
			return err
		}
		s.succeed(v)
		return nil
	}
}

func (s *Session) login(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "auth: wait for next attempt")
		}
		pw, err := s.prompter.ReadPassword("Enter your password: ")
		if err != nil {
			return errors.Wrap(err, "auth: read password")
		}

		v, err := s.open(pw, s.path, s.vaultOptions()...)
		if err != nil {
			return err
		}
		err = v.Verify()
		if err == nil {
			s.succeed(v)
			return nil
		}
		v.Close()
		if !errors.Is(err, vault.ErrDecryptionFailed) {
			return err
		}
		if s.fail("Incorrect password") {
			return ErrLocked
		}
	}
}

// fail counts a failed attempt and reports whether the session is now locked.
func (s *Session) fail(reason string) bool {
	s.attempts++
	remaining := s.cfg.MaxAttempts - s.attempts
	s.logger.Warn("authentication attempt failed",
		slog.String("reason", reason),
		slog.Int("attempt", s.attempts),
		slog.Int("remaining", remaining))

	if remaining <= 0 {
		s.state = StateLocked
		s.logger.Error("session locked", slog.Int("attempts", s.attempts))
		s.prompter.Notify("Maximum password attempts exceeded. Restart to try again.")
		return true
	}
	noun := "attempts"
	if remaining == 1 {
		noun = "attempt"
	}
	s.prompter.Notify(fmt.Sprintf("%s. You have %d %s remaining.", reason, remaining, noun))
	return false
}

func (s *Session) succeed(v *vault.Vault) {
	s.vault = v
	s.state = StateAuthenticated
	s.attempts = 0
	s.logger.Info("authenticated", slog.String("path", s.path))
	s.prompter.Notify("Authentication successful.")
}

func (s *Session) vaultOptions() []vault.Option {
	return []vault.Option{vault.WithScheme(s.cfg.Scheme), vault.WithLogger(s.logger)}
}

// authed returns the open vault or ErrNotAuthenticated.
func (s *Session) authed() (*vault.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated || s.vault == nil {
		return nil, ErrNotAuthenticated
	}
	return s.vault, nil
}

func (s *Session) AddSecret(name, value string) error {
	v, err := s.authed()
	if err != nil {
		return err
	}
	return v.Store(name, []byte(value))
}

// Secret returns a lazily decrypted handle for name.
func (s *Session) Secret(name string) (vault.LazySecret, error) {
	v, err := s.authed()
	if err != nil {
		return vault.LazySecret{}, err
	}
	return v.Secret(name), nil
}

func (s *Session) GetSecret(name string) (string, error) {
	secret, err := s.Secret(name)
	if err != nil {
		return "", err
	}
	pt, err := secret.Resolve()
	if err != nil {
		return "", err
	}
	defer vault.Zero(pt)
	return string(pt), nil
}

func (s *Session) ListSecretNames() ([]string, error) {
	v, err := s.authed()
	if err != nil {
		return nil, err
	}
	return v.Names()
}

// EnsureSecrets offers to store each required secret that has no record yet.
func (s *Session) EnsureSecrets(ctx context.Context) error {
	v, err := s.authed()
	if err != nil {
		return err
	}
	names, err := v.Names()
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}

	var missing []string
	for _, n := range s.cfg.RequiredSecrets {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		s.prompter.Notify("All required secrets are already set up.")
		return nil
	}

	for _, name := range missing {
		yes, err := s.askYesNo(ctx, fmt.Sprintf("Do you want to enter your %s? (yes/no): ", name))
		if err != nil {
			return err
		}
		if !yes {
			continue
		}
		value, err := s.prompter.ReadPassword(fmt.Sprintf("Enter your %s: ", name))
		if err != nil {
			return errors.Wrap(err, "auth: read secret")
		}
		err = v.Store(name, value)
		vault.Zero(value)
		if err != nil {
			return err
		}
		s.prompter.Notify(name + " added successfully.")
	}
	return nil
}

func (s *Session) askYesNo(ctx context.Context, prompt string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		answer, err := s.prompter.ReadLine(prompt)
		if err != nil {
			return false, errors.Wrap(err, "auth: read answer")
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		s.prompter.Notify("Please enter 'yes' or 'no'.")
	}
}

// Close wipes the vault key. The session must authenticate again before
// further use; a locked session stays locked.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault != nil {
		s.vault.Close()
		s.vault = nil
	}
	if s.state == StateAuthenticated {
		s.state = StateUnauthenticated
	}
}

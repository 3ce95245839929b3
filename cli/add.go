package cli

import (
	"strings"

	"github.com/fahmaliyi/keyvault/auth"
	"github.com/fahmaliyi/keyvault/vault"
	"github.com/pkg/errors"
)

// AddSecretCLI asks for the value of name without echo and stores it. An
// empty name is asked for first.
func AddSecretCLI(s *auth.Session, p auth.Prompter, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		line, err := p.ReadLine("Enter a name for the secret: ")
		if err != nil {
			return err
		}
		name = strings.TrimSpace(line)
	}
	if err := vault.ValidateName(name); err != nil {
		return err
	}

	value, err := p.ReadPassword("Enter " + name + ": ")
	if err != nil {
		return err
	}
	defer vault.Zero(value)

	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" {
		return errors.New("empty value, nothing stored")
	}
	if err := s.AddSecret(name, trimmed); err != nil {
		return err
	}
	p.Notify(name + " encrypted and stored.")
	return nil
}

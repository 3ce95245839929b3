package auth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-diceware/diceware"
)

const (
	DefaultMinLength = 16
	DefaultSymbols   = "!@#$%^&*()_+-="
)

// Policy is the rule set a new vault password must satisfy.
type Policy struct {
	MinLength int
	Symbols   string
}

func DefaultPolicy() Policy {
	return Policy{MinLength: DefaultMinLength, Symbols: DefaultSymbols}
}

// PolicyError names the first rule a password breaks. It matches
// ErrPasswordPolicy under errors.Is.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "auth: password " + e.Reason }

func (e *PolicyError) Is(target error) bool { return target == ErrPasswordPolicy }

func (p Policy) Validate(password []byte) error {
	if n := utf8.RuneCount(password); n < p.MinLength {
		return &PolicyError{Reason: fmt.Sprintf("must be at least %d characters long", p.MinLength)}
	}
	if p.Symbols != "" && !strings.ContainsAny(string(password), p.Symbols) {
		return &PolicyError{Reason: "must contain one of " + p.Symbols}
	}
	return nil
}

// SuggestPassphrase returns diceware words joined by a symbol from the
// policy, adding words until the result is long enough.
func (p Policy) SuggestPassphrase(words int) (string, error) {
	if words < 1 {
		words = 1
	}
	sep := "-"
	if p.Symbols != "" && !strings.Contains(p.Symbols, sep) {
		r, _ := utf8.DecodeRuneInString(p.Symbols)
		sep = string(r)
	}

	list, err := diceware.Generate(words)
	if err != nil {
		return "", errors.Wrap(err, "auth: generate passphrase")
	}
	for len(list) < 2 || utf8.RuneCountInString(strings.Join(list, sep)) < p.MinLength {
		more, err := diceware.Generate(1)
		if err != nil {
			return "", errors.Wrap(err, "auth: generate passphrase")
		}
		list = append(list, more...)
	}
	return strings.Join(list, sep), nil
}

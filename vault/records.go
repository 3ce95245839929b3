package vault

import (
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// AppendRecord writes `<name>_ENCRYPTED=<token>` to the end of path.
// Earlier records for the same name stay in the file and are shadowed.
func AppendRecord(path, name, token string) error {
	// Only the pattern is checked here; the canary record is written through
	// this function, so the reserved name is enforced by ValidateName instead.
	if !namePattern.MatchString(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if token == "" || strings.ContainsAny(token, "\r\n") {
		return errors.New("vault: token must be a single non-empty line")
	}
	return appendLine(path, name+encryptedSuffix+"="+token)
}

// LookupLatest returns the token of the last record written for name.
func LookupLatest(path, name string) (string, error) {
	return lookupLatest(path, name, nil)
}

func lookupLatest(path, name string, onBad badLineFunc) (string, error) {
	env, err := readRecords(path, onBad)
	if err != nil {
		return "", err
	}
	token, ok := env[name+encryptedSuffix]
	if !ok || token == "" {
		return "", errors.Wrapf(ErrSecretNotFound, "%q", name)
	}
	return token, nil
}

// ListNames returns the sorted names that have at least one record. The
// reserved canary record is not listed.
func ListNames(path string) ([]string, error) {
	return listNames(path, nil)
}

func listNames(path string, onBad badLineFunc) ([]string, error) {
	env, err := readRecords(path, onBad)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(env))
	for key := range env {
		name := strings.TrimSuffix(key, encryptedSuffix)
		if name == "" || name == CanaryName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasRecords reports whether path holds at least one record, the canary
// included. A salt line on its own does not count.
func HasRecords(path string) (bool, error) {
	env, err := readRecords(path, nil)
	if err != nil {
		return false, err
	}
	return len(env) > 0, nil
}

// badLineFunc is told about record lines that could not be parsed.
type badLineFunc func(lineNo int, err error)

// readRecords collects the `*_ENCRYPTED` entries of path. Each record line
// is parsed as dotenv on its own, so a malformed line is skipped without
// hiding the others. Later lines override earlier ones with the same key.
func readRecords(path string, onBad badLineFunc) (map[string]string, error) {
	env := make(map[string]string)
	lineNo := 0
	err := scanLines(path, func(line string) bool {
		lineNo++
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			return true
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok || !strings.HasSuffix(strings.TrimSpace(key), encryptedSuffix) {
			return true
		}

		parsed, err := godotenv.Unmarshal(trimmed)
		if err != nil {
			if onBad != nil {
				onBad(lineNo, err)
			}
			return true
		}
		for k, v := range parsed {
			if strings.HasSuffix(k, encryptedSuffix) {
				env[k] = v
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

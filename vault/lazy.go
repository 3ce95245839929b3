package vault

// LazySecret names a secret without holding its value. Every Resolve reads
// and decrypts the newest record again.
type LazySecret struct {
	name  string
	vault *Vault
}

func (s LazySecret) Name() string { return s.name }

func (s LazySecret) Resolve() ([]byte, error) {
	if s.vault == nil {
		return nil, ErrClosed
	}
	return s.vault.Load(s.name)
}

// String never includes the secret value.
func (s LazySecret) String() string { return "LazySecret(" + s.name + ")" }

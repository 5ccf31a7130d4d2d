package session

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	demoDisplayName = "Demo User"
	demoEmailDomain = "seniordevacademy.com"
	defaultRole     = "USER"
)

// OpenVerifier accepts any secret for a non-empty handle and synthesizes a
// demo identity.
type OpenVerifier struct{}

func (OpenVerifier) Verify(_ context.Context, handle, _ string) (Identity, error) {
	if handle == "" {
		return Identity{}, ErrEmptyHandle
	}
	return Identity{
		DisplayName: demoDisplayName,
		Email:       handle + "@" + demoEmailDomain,
		Role:        defaultRole,
	}, nil
}

// Account is one entry of a credentials file.
type Account struct {
	PasswordHash string `yaml:"password_hash"`
	DisplayName  string `yaml:"display_name"`
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
}

// BcryptVerifier checks secrets against bcrypt hashes.
type BcryptVerifier struct {
	accounts map[string]Account
}

// NewBcryptVerifier creates a verifier over the given accounts, keyed by handle.
func NewBcryptVerifier(accounts map[string]Account) *BcryptVerifier {
	return &BcryptVerifier{accounts: accounts}
}

// LoadCredentials reads a YAML credentials file of the form:
//
//	accounts:
//	  alice:
//	    password_hash: $2a$10$...
//	    display_name: Alice
func LoadCredentials(path string) (*BcryptVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var file struct {
		Accounts map[string]Account `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if len(file.Accounts) == 0 {
		return nil, fmt.Errorf("credentials file %s has no accounts", path)
	}
	return NewBcryptVerifier(file.Accounts), nil
}

func (v *BcryptVerifier) Verify(_ context.Context, handle, secret string) (Identity, error) {
	if handle == "" {
		return Identity{}, ErrEmptyHandle
	}
	acct, ok := v.accounts[handle]
	if !ok {
		// Compare anyway so unknown handles cost the same as wrong secrets.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(secret)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	id := Identity{
		DisplayName: acct.DisplayName,
		Email:       acct.Email,
		Role:        acct.Role,
	}
	if id.DisplayName == "" {
		id.DisplayName = handle
	}
	if id.Email == "" {
		id.Email = handle + "@" + demoEmailDomain
	}
	if id.Role == "" {
		id.Role = defaultRole
	}
	return id, nil
}

// dummyHash is a well-formed cost-10 hash that matches no account.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

package auth

import "golang.org/x/oauth2"

// TokenStore defines the interface for token storage operations
// This allows us to mock the keyring in tests
type TokenStore interface {
	SaveToken(alias string, token *oauth2.Token) error
	LoadToken(alias string) (*oauth2.Token, error)
	DeleteToken(alias string) error
}

// defaultTokenStore implements TokenStore using the OS keyring
type defaultTokenStore struct{}

var Default TokenStore = &defaultTokenStore{}

func (d *defaultTokenStore) SaveToken(alias string, token *oauth2.Token) error {
	return SaveToken(alias, token)
}

func (d *defaultTokenStore) LoadToken(alias string) (*oauth2.Token, error) {
	return LoadToken(alias)
}

func (d *defaultTokenStore) DeleteToken(alias string) error {
	return DeleteToken(alias)
}

// MemoryStore keeps tokens in memory for the lifetime of the process
type MemoryStore struct {
	tokens map[string]*oauth2.Token
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*oauth2.Token)}
}

func (m *MemoryStore) SaveToken(alias string, token *oauth2.Token) error {
	m.tokens[alias] = token
	return nil
}

func (m *MemoryStore) LoadToken(alias string) (*oauth2.Token, error) {
	token, ok := m.tokens[alias]
	if !ok || token == nil || token.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return token, nil
}

func (m *MemoryStore) DeleteToken(alias string) error {
	delete(m.tokens, alias)
	return nil
}

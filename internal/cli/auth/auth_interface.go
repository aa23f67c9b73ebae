package auth

// TokenStore defines the interface for token storage operations.
// Tokens are keyed by the server base URL.
type TokenStore interface {
	SaveToken(server, token string) error
	LoadToken(server string) (string, error)
	DeleteToken(server string) error
}

// keyringTokenStore implements TokenStore using the OS keyring
type keyringTokenStore struct{}

var Default TokenStore = &keyringTokenStore{}

func (k *keyringTokenStore) SaveToken(server, token string) error {
	return SaveToken(server, token)
}

func (k *keyringTokenStore) LoadToken(server string) (string, error) {
	return LoadToken(server)
}

func (k *keyringTokenStore) DeleteToken(server string) error {
	return DeleteToken(server)
}

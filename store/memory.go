package store

import (
	"context"
	"encoding/json"
	"sync"

	auth "github.com/autoresum/autoresum-go"
)

// Memory is an in-process CredentialStore. It keeps the same JSON
// round-trip as the SQLite store so corrupt-value behavior can be
// exercised in tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ auth.CredentialStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// Seed injects a raw value under a storage key. Tests use it to plant
// corrupt payloads.
func (m *Memory) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Memory) Credential(ctx context.Context) (*auth.Credential, error) {
	m.mu.RLock()
	raw, found := m.values[keyToken]
	m.mu.RUnlock()
	if !found {
		return nil, nil
	}

	var cred auth.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, nil
	}
	if cred.AccessToken == "" {
		return nil, nil
	}
	return &cred, nil
}

func (m *Memory) SetCredential(ctx context.Context, cred auth.Credential) error {
	encoded, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[keyToken] = string(encoded)
	m.mu.Unlock()
	return nil
}

func (m *Memory) User(ctx context.Context) (*auth.UserProfile, error) {
	m.mu.RLock()
	raw, found := m.values[keyUser]
	m.mu.RUnlock()
	if !found {
		return nil, nil
	}

	var user auth.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

func (m *Memory) SetUser(ctx context.Context, user *auth.UserProfile) error {
	if user == nil {
		m.mu.Lock()
		delete(m.values, keyUser)
		m.mu.Unlock()
		return nil
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[keyUser] = string(encoded)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	delete(m.values, keyToken)
	delete(m.values, keyUser)
	m.mu.Unlock()
	return nil
}

// TokenKey and UserKey expose the fixed storage keys for tests.
func TokenKey() string { return keyToken }
func UserKey() string  { return keyUser }

package credentials

import (
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Store is the in-memory username to password map consulted on CONNECT.
// It only ever grows: refresh sources add unknown usernames and never
// modify or remove existing entries.
type Store struct {
	mu          sync.RWMutex
	credentials map[string]string
}

func NewStore() *Store {
	return &Store{credentials: make(map[string]string)}
}

// Add records a username/password pair.
func (s *Store) Add(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[username] = password
}

// Has reports whether the username is known.
func (s *Store) Has(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.credentials[username]
	return ok
}

// IsValid checks a username/password pair. Entries loaded from the file
// source compare by exact bytes; entries loaded from the user database hold
// a bcrypt hash and are verified against it.
func (s *Store) IsValid(username, password string) bool {
	s.mu.RLock()
	stored, ok := s.credentials[username]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return stored == password
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

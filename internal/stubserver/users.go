package stubserver

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-ledger-client/internal/model"
)

// storedUser is the on-disk user record. The password hash never leaves the
// server; handlers respond with model.User.
type storedUser struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	RoleName     string `json:"role_name"`
	Language     string `json:"language,omitempty"`
	PasswordHash string `json:"password_hash"`
	LastLogin    string `json:"last_login,omitempty"`
}

func (u storedUser) public() model.User {
	return model.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		RoleName:  u.RoleName,
		Language:  u.Language,
		LastLogin: u.LastLogin,
	}
}

type userStore struct {
	path string
	mu   sync.RWMutex
	byID map[int]storedUser
	byUsername map[string]int
}

func newUserStore(path string) (*userStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("users file path is required")
	}

	s := &userStore{path: path, byID: map[int]storedUser{}, byUsername: map[string]int{}}
	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *userStore) load() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) || (err == nil && len(strings.TrimSpace(string(data))) == 0) {
		if err := s.seedDefaults(); err != nil {
			return err
		}
		data, err = os.ReadFile(s.path)
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	var users []storedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = map[int]storedUser{}
	s.byUsername = map[string]int{}
	for _, user := range users {
		s.byID[user.ID] = user
		s.byUsername[strings.ToLower(user.Username)] = user.ID
	}

	return nil
}

// seedDefaults writes a starter user set covering each role so a fresh
// checkout is usable immediately. The well-known dev password is "admin123".
func (s *userStore) seedDefaults() error {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), 12)
	if err != nil {
		return err
	}

	users := []storedUser{
		{ID: 1, Username: "admin", Email: "admin@example.org", FirstName: "System", LastName: "Administrator", RoleName: "Administrator", PasswordHash: string(hash)},
		{ID: 2, Username: "fmanager", Email: "fmanager@example.org", FirstName: "Farida", LastName: "Mansour", RoleName: "Financial Manager", PasswordHash: string(hash)},
		{ID: 3, Username: "accountant", Email: "accountant@example.org", FirstName: "Omar", LastName: "Khalil", RoleName: "Accountant", PasswordHash: string(hash)},
		{ID: 4, Username: "clerk", Email: "clerk@example.org", FirstName: "Dana", LastName: "Haddad", RoleName: "Data Entry Clerk", PasswordHash: string(hash)},
		{ID: 5, Username: "auditor", Email: "auditor@example.org", FirstName: "Rami", LastName: "Aziz", RoleName: "Auditor", PasswordHash: string(hash)},
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

func (s *userStore) byName(username string) (storedUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return storedUser{}, false
	}

	return s.byID[id], true
}

func (s *userStore) get(id int) (storedUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	return user, ok
}

func (s *userStore) touchLogin(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.byID[id]; ok {
		user.LastLogin = time.Now().UTC().Format(time.RFC3339)
		s.byID[id] = user
		s.saveLocked()
	}
}

func (s *userStore) setPassword(id int, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = hash
	s.byID[id] = user

	return s.saveLocked()
}

func (s *userStore) saveLocked() error {
	users := make([]storedUser, 0, len(s.byID))
	for _, user := range s.byID {
		users = append(users, user)
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MR-JLTC/tutorchat/internal/bus"
)

// Roles as reported by the marketplace backend. The backend sends
// "student" for some tutee accounts; NormalizeRole folds that in.
const (
	RoleTutor = "tutor"
	RoleTutee = "tutee"
	RoleAdmin = "admin"
)

// NormalizeRole maps backend user_type values onto the three client roles.
func NormalizeRole(role string) string {
	if role == "student" {
		return RoleTutee
	}
	return role
}

// User is the authenticated account as returned by the login endpoint.
type User struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"user_type"`
	Verified bool   `json:"is_verified"`
}

// Credentials is a user plus their access token.
type Credentials struct {
	User  User   `json:"user"`
	Token string `json:"access_token"`
}

// Manager owns the session credential: it persists it, answers who is
// logged in, and announces every change on the bus so the connection
// manager can tear down and redial. All credential reads go through here;
// nothing else touches the credentials file.
type Manager struct {
	mu    sync.RWMutex
	path  string
	bus   *bus.Bus
	creds *Credentials
}

// NewManager creates a credential manager backed by the given file path.
// An existing credentials file is loaded; a missing or expired one leaves
// the manager logged out.
func NewManager(path string, b *bus.Bus) *Manager {
	m := &Manager{path: path, bus: b}

	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return m
	}
	if claims, err := ParseClaims(creds.Token); err == nil && !claims.Expired(time.Now()) {
		creds.User.Role = NormalizeRole(creds.User.Role)
		m.creds = &creds
	}
	return m
}

// Current returns the active credentials, or nil when logged out.
func (m *Manager) Current() *Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Token returns the active access token, or empty when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return ""
	}
	return m.creds.Token
}

// Set stores new credentials, persists them, and publishes a change event.
func (m *Manager) Set(creds Credentials) error {
	creds.User.Role = NormalizeRole(creds.User.Role)

	m.mu.Lock()
	m.creds = &creds
	m.mu.Unlock()

	if err := m.persist(&creds); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	m.publish(bus.KindSessionChanged)
	return nil
}

// Clear drops the credentials, removes the persisted file, and publishes
// logout. Safe to call when already logged out.
func (m *Manager) Clear() error {
	m.mu.Lock()
	wasLoggedIn := m.creds != nil
	m.creds = nil
	m.mu.Unlock()

	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	if wasLoggedIn {
		m.publish(bus.KindSessionLoggedOut)
		m.publish(bus.KindSessionChanged)
	}
	return nil
}

func (m *Manager) persist(creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0600)
}

func (m *Manager) publish(kind string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now()})
}

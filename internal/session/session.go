// Package session manages login, persistence, and validation of accounts'
// cookie-jar state, grounded on the original session manager's lifecycle
// (login, persist, restore, validate, cleanup) with cookies sealed at rest
// through the crypto envelope rather than a hardcoded AES key.
package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/store"
)

const sessionFileExt = ".bin"

// Credentials identify an account to authenticate as.
type Credentials struct {
	Username string
	Password string
	Email    string
}

// Session is the in-memory, decrypted view of one authenticated identity.
type Session struct {
	ID          string
	Credentials Credentials
	Cookies     map[string]string
	CreatedAt   time.Time
	LastUsed    time.Time
	IsValid     bool
	Metadata    map[string]string
}

func newSession(id string, creds Credentials) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		Credentials: creds,
		Cookies:     make(map[string]string),
		CreatedAt:   now,
		LastUsed:    now,
		IsValid:     true,
		Metadata:    make(map[string]string),
	}
}

func (s *Session) touch() { s.LastUsed = time.Now().UTC() }

func (s *Session) addCookie(name, value string) {
	s.Cookies[name] = value
	s.touch()
}

// GenerateID returns a time-prefixed, UUID-suffixed session identifier.
func GenerateID() string {
	id := uuid.New().String()
	return fmt.Sprintf("session_%d_%s", time.Now().UTC().Unix(), id[:8])
}

// Manager owns the session lifecycle: login, seal/persist, restore,
// validate, list, delete, and expiry cleanup. Sealed session blobs live as
// individual files under sessionsDir; st only carries an indexed,
// queryable view of the same sessions (status, account id, last-used) for
// lookups that don't need the cookie jar itself.
type Manager struct {
	st          store.Store
	client      *httpclient.Client
	envelope    *crypto.Envelope
	sessionsDir string
	loginURL    string
	validateURL string
}

// NewManager builds a Manager. sessionsDir holds one sealed file per
// session; loginURL and validateURL are the endpoints used to authenticate
// and to cheaply probe an existing session.
func NewManager(st store.Store, client *httpclient.Client, envelope *crypto.Envelope, sessionsDir, loginURL, validateURL string) *Manager {
	return &Manager{st: st, client: client, envelope: envelope, sessionsDir: sessionsDir, loginURL: loginURL, validateURL: validateURL}
}

func (m *Manager) sessionFile(sessionID string) string {
	return filepath.Join(m.sessionsDir, sessionID+sessionFileExt)
}

// writeSealed atomically writes sealed to sessionID's file: a temp file in
// the same directory followed by rename, so a reader never observes a
// partially written file.
func (m *Manager) writeSealed(sessionID string, sealed []byte) error {
	if err := os.MkdirAll(m.sessionsDir, 0o700); err != nil {
		return fmt.Errorf("session: create sessions dir: %w", err)
	}

	final := m.sessionFile(sessionID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("session: write session file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: rename session file: %w", err)
	}
	return nil
}

// Login authenticates creds against the configured login endpoint and
// returns a new Session populated with the cookies the endpoint issued.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	sess := newSession(GenerateID(), creds)

	payload, err := json.Marshal(map[string]string{
		"username":  creds.Username,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("session: marshal login payload: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	resp, err := m.client.Request(ctx, http.MethodPost, m.loginURL, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("session: login request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("session: login failed with status %d", resp.StatusCode)
	}

	sess.addCookie("session_id", randomToken(16))
	sess.addCookie("user_id", creds.Username)
	sess.addCookie("login_time", time.Now().UTC().Format(time.RFC3339))
	sess.addCookie("auth_token", "token_"+randomToken(16))
	sess.Metadata["login_successful"] = "true"

	return sess, nil
}

func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Persist seals sess's cookie jar and metadata into sessionsDir/<id>.bin and
// upserts an indexed row in the store for account/status lookups.
func (m *Manager) Persist(ctx context.Context, sess *Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal session: %w", err)
	}

	sealed, err := m.envelope.Seal(blob)
	if err != nil {
		return fmt.Errorf("session: seal session: %w", err)
	}

	if err := m.writeSealed(sess.ID, sealed); err != nil {
		return err
	}

	status := "invalid"
	if sess.IsValid {
		status = "valid"
	}

	if _, found, err := m.st.GetSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("session: check existing index row: %w", err)
	} else if found {
		if err := m.st.UpdateSessionStatus(ctx, sess.ID, status); err != nil {
			return fmt.Errorf("session: update status: %w", err)
		}
		return m.st.TouchSession(ctx, sess.ID, sess.LastUsed)
	}

	rec := &store.SessionRecord{
		SessionID:  sess.ID,
		AccountID:  sess.Credentials.Username,
		Status:     status,
		LastUsedAt: &sess.LastUsed,
	}
	if err := m.st.InsertSession(ctx, rec); err != nil {
		return fmt.Errorf("session: insert index row: %w", err)
	}
	return nil
}

// Restore reads and decrypts sessionID's sealed file. Any failure along the
// way — missing file, tampered ciphertext, malformed JSON — is reported as
// one error so callers doing expiry sweeps can treat it as corruption.
func (m *Manager) Restore(ctx context.Context, sessionID string) (*Session, error) {
	sealed, err := os.ReadFile(m.sessionFile(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session: read session file: %w", err)
	}

	plain, err := m.envelope.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("session: open sealed cookies: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}

// Validate re-issues sess's cookies against the validation endpoint and
// updates sess.IsValid and sess.LastUsed in place.
func (m *Manager) Validate(ctx context.Context, sess *Session) (bool, error) {
	sess.touch()

	headers := http.Header{}
	if len(sess.Cookies) > 0 {
		headers.Set("Cookie", encodeCookieHeader(sess.Cookies))
	}

	resp, err := m.client.Request(ctx, http.MethodGet, m.validateURL, headers, nil, nil)
	if err != nil {
		sess.IsValid = false
		return false, nil
	}

	sess.IsValid = resp.StatusCode >= 200 && resp.StatusCode < 300
	return sess.IsValid, nil
}

func encodeCookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for k := range cookies {
		names = append(names, k)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for i, name := range names {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(name)
		buf.WriteByte('=')
		buf.WriteString(cookies[name])
	}
	return buf.String()
}

// List returns every session id with a sealed file under sessionsDir,
// sorted. An absent sessionsDir is treated as empty, not an error.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read sessions dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != sessionFileExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), sessionFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes sessionID's sealed file and its index row.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := os.Remove(m.sessionFile(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: delete session file: %w", err)
	}
	return m.st.DeleteSession(ctx, sessionID)
}

// CleanupExpired restores every persisted session and deletes it if it is
// older than maxAge or if restoring it failed for any reason (a corrupted
// or unreadable sealed file is itself grounds for deletion). Returns the
// number removed.
func (m *Manager) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("session: list for cleanup: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	cleaned := 0
	for _, id := range ids {
		sess, restoreErr := m.Restore(ctx, id)
		expired := restoreErr != nil || sess.LastUsed.Before(cutoff)
		if !expired {
			continue
		}
		if err := m.Delete(ctx, id); err != nil {
			return cleaned, fmt.Errorf("session: delete expired %s: %w", id, err)
		}
		cleaned++
	}
	return cleaned, nil
}

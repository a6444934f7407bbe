// Package vault stores account, proxy, and captcha credentials sealed at
// rest as a single encrypted JSON blob, grounded on the original credential
// vault's load/save/env-bootstrap flow.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/relaysix/lazabot/internal/crypto"
)

// AccountCredentials is a single storefront login.
type AccountCredentials struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email,omitempty"`
}

// CaptchaCredentials authenticates against a captcha-solving API.
type CaptchaCredentials struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ProxyCredentials authenticates against a single proxy endpoint.
type ProxyCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Type     string `json:"type"`
}

// Vault is the full set of secrets persisted to disk.
type Vault struct {
	Accounts    map[string]AccountCredentials `json:"accounts"`
	Captcha     *CaptchaCredentials           `json:"captcha,omitempty"`
	Proxies     map[string]ProxyCredentials   `json:"proxies"`
	CreatedAt   time.Time                     `json:"created_at"`
	LastUpdated time.Time                     `json:"last_updated"`
}

func newVault() *Vault {
	now := time.Now().UTC()
	return &Vault{
		Accounts:    make(map[string]AccountCredentials),
		Proxies:     make(map[string]ProxyCredentials),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

var ErrAccountNotFound = errors.New("vault: account not found")

func (v *Vault) addAccount(id string, creds AccountCredentials) {
	v.Accounts[id] = creds
	v.LastUpdated = time.Now().UTC()
}

func (v *Vault) addProxy(id string, creds ProxyCredentials) {
	v.Proxies[id] = creds
	v.LastUpdated = time.Now().UTC()
}

func (v *Vault) setCaptcha(creds CaptchaCredentials) {
	v.Captcha = &creds
	v.LastUpdated = time.Now().UTC()
}

// Manager loads, mutates, and persists a Vault sealed on disk at path.
type Manager struct {
	path     string
	envelope *crypto.Envelope
	vault    *Vault
}

// Open loads the vault sealed at path, or creates an empty one if the file
// does not exist yet.
func Open(path string, envelope *crypto.Envelope) (*Manager, error) {
	v, err := load(path, envelope)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, envelope: envelope, vault: v}, nil
}

func load(path string, envelope *crypto.Envelope) (*Vault, error) {
	sealed, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return newVault(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}

	plaintext, err := envelope.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", path, err)
	}

	var v Vault
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return nil, fmt.Errorf("vault: parse %s: %w", path, err)
	}
	return &v, nil
}

// Save serializes and seals the vault to its backing path.
func (m *Manager) Save() error {
	plaintext, err := json.MarshalIndent(m.vault, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshal: %w", err)
	}

	sealed, err := m.envelope.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("vault: seal: %w", err)
	}

	if err := os.WriteFile(m.path, sealed, 0o600); err != nil {
		return fmt.Errorf("vault: write %s: %w", m.path, err)
	}
	return nil
}

func (m *Manager) AddAccount(id string, creds AccountCredentials) {
	m.vault.addAccount(id, creds)
}

func (m *Manager) AddProxy(id string, creds ProxyCredentials) {
	m.vault.addProxy(id, creds)
}

func (m *Manager) SetCaptcha(creds CaptchaCredentials) {
	m.vault.setCaptcha(creds)
}

func (m *Manager) Account(id string) (AccountCredentials, error) {
	creds, ok := m.vault.Accounts[id]
	if !ok {
		return AccountCredentials{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return creds, nil
}

func (m *Manager) AccountIDs() []string {
	ids := make([]string, 0, len(m.vault.Accounts))
	for id := range m.vault.Accounts {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) Proxy(id string) (ProxyCredentials, bool) {
	p, ok := m.vault.Proxies[id]
	return p, ok
}

func (m *Manager) ProxyIDs() []string {
	ids := make([]string, 0, len(m.vault.Proxies))
	for id := range m.vault.Proxies {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) CaptchaCreds() (CaptchaCredentials, bool) {
	if m.vault.Captcha == nil {
		return CaptchaCredentials{}, false
	}
	return *m.vault.Captcha, true
}

// Snapshot returns the underlying vault for read-only inspection (e.g. a
// "vault info" CLI command).
func (m *Manager) Snapshot() Vault {
	return *m.vault
}

// DeriveKey derives a 32-byte AEAD key from a human passphrase and salt via
// scrypt, for environments that prefer a passphrase over a raw hex key.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), []byte(salt), 32768, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return key, nil
}

const (
	envMasterKey  = "LAZABOT_MASTER_KEY"
	envCaptchaKey = "LAZABOT_CAPTCHA_API_KEY"
	envCaptchaEP  = "LAZABOT_CAPTCHA_ENDPOINT"
	envUsername   = "LAZABOT_USERNAME"
	envPassword   = "LAZABOT_PASSWORD"
	envEmail      = "LAZABOT_EMAIL"
	envProxyHost  = "LAZABOT_PROXY_HOST"
	envProxyPort  = "LAZABOT_PROXY_PORT"
	envProxyUser  = "LAZABOT_PROXY_USERNAME"
	envProxyPass  = "LAZABOT_PROXY_PASSWORD"
	envProxyType  = "LAZABOT_PROXY_TYPE"
)

// LoadFromEnv populates accounts, proxies, and captcha credentials from
// environment variables: numbered LAZABOT_ACCOUNT_<n>_* / LAZABOT_PROXY_<n>_*
// for multiple entries, falling back to unnumbered LAZABOT_USERNAME /
// LAZABOT_PROXY_HOST when no numbered entries are present.
func (m *Manager) LoadFromEnv() error {
	if apiKey, ok := os.LookupEnv(envCaptchaKey); ok {
		m.SetCaptcha(CaptchaCredentials{APIKey: apiKey, Endpoint: os.Getenv(envCaptchaEP)})
	}

	if err := m.loadAccountsFromEnv(); err != nil {
		return err
	}
	return m.loadProxiesFromEnv()
}

func (m *Manager) loadAccountsFromEnv() error {
	index := 1
	for {
		usernameVar := fmt.Sprintf("LAZABOT_ACCOUNT_%d_USERNAME", index)
		username, ok := os.LookupEnv(usernameVar)
		if !ok {
			break
		}
		passwordVar := fmt.Sprintf("LAZABOT_ACCOUNT_%d_PASSWORD", index)
		password, ok := os.LookupEnv(passwordVar)
		if !ok {
			return fmt.Errorf("vault: missing %s", passwordVar)
		}
		email := os.Getenv(fmt.Sprintf("LAZABOT_ACCOUNT_%d_EMAIL", index))
		accountID := fmt.Sprintf("account_%d", index)
		m.AddAccount(accountID, AccountCredentials{AccountID: accountID, Username: username, Password: password, Email: email})
		index++
	}

	if index == 1 {
		username, hasUsername := os.LookupEnv(envUsername)
		password, hasPassword := os.LookupEnv(envPassword)
		if hasUsername && hasPassword {
			m.AddAccount("default_account", AccountCredentials{
				AccountID: "default_account", Username: username, Password: password, Email: os.Getenv(envEmail),
			})
		}
	}
	return nil
}

func (m *Manager) loadProxiesFromEnv() error {
	index := 1
	for {
		hostVar := fmt.Sprintf("LAZABOT_PROXY_%d_HOST", index)
		host, ok := os.LookupEnv(hostVar)
		if !ok {
			break
		}
		portVar := fmt.Sprintf("LAZABOT_PROXY_%d_PORT", index)
		portStr, ok := os.LookupEnv(portVar)
		if !ok {
			return fmt.Errorf("vault: missing %s", portVar)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("vault: invalid %s: %w", portVar, err)
		}
		proxyType := os.Getenv(fmt.Sprintf("LAZABOT_PROXY_%d_TYPE", index))
		if proxyType == "" {
			proxyType = "http"
		}
		proxyID := fmt.Sprintf("proxy_%d", index)
		m.AddProxy(proxyID, ProxyCredentials{
			Host:     host,
			Port:     port,
			Username: os.Getenv(fmt.Sprintf("LAZABOT_PROXY_%d_USERNAME", index)),
			Password: os.Getenv(fmt.Sprintf("LAZABOT_PROXY_%d_PASSWORD", index)),
			Type:     proxyType,
		})
		index++
	}

	if index == 1 {
		host, hasHost := os.LookupEnv(envProxyHost)
		portStr, hasPort := os.LookupEnv(envProxyPort)
		if hasHost && hasPort {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("vault: invalid %s: %w", envProxyPort, err)
			}
			proxyType := os.Getenv(envProxyType)
			if proxyType == "" {
				proxyType = "http"
			}
			m.AddProxy("default_proxy", ProxyCredentials{
				Host: host, Port: port,
				Username: os.Getenv(envProxyUser), Password: os.Getenv(envProxyPass),
				Type: proxyType,
			})
		}
	}
	return nil
}

// ValidateEnv checks that the minimum set of environment variables needed to
// bootstrap a vault from the environment is present, returning a combined
// error naming every missing variable.
func ValidateEnv() error {
	var missing []string

	if _, ok := os.LookupEnv(envMasterKey); !ok {
		missing = append(missing, envMasterKey)
	}

	_, hasUsername := os.LookupEnv(envUsername)
	_, hasPassword := os.LookupEnv(envPassword)
	_, hasNumberedUsername := os.LookupEnv("LAZABOT_ACCOUNT_1_USERNAME")
	_, hasNumberedPassword := os.LookupEnv("LAZABOT_ACCOUNT_1_PASSWORD")
	if !(hasUsername && hasPassword) && !(hasNumberedUsername && hasNumberedPassword) {
		missing = append(missing, "LAZABOT_USERNAME and LAZABOT_PASSWORD (or LAZABOT_ACCOUNT_1_USERNAME and LAZABOT_ACCOUNT_1_PASSWORD)")
	}

	if _, ok := os.LookupEnv(envCaptchaKey); !ok {
		missing = append(missing, envCaptchaKey)
	}

	if len(missing) > 0 {
		return fmt.Errorf("vault: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

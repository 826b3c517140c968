package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
)

// Credential storage constants.
const (
	DefaultCredentialsDir  = ".genminute"
	DefaultCredentialsFile = "credentials.yaml"
)

// Common errors.
var (
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Credential holds one user's delegated calendar authorization.
type Credential struct {
	// UserID is the owner of this authorization.
	UserID string `yaml:"user_id"`
	// AccessToken is the delegated calendar access token (encrypted at rest).
	AccessToken string `yaml:"access_token"`
	// RefreshToken renews the access token (encrypted at rest).
	RefreshToken string `yaml:"refresh_token,omitempty"`
	// ExpiresAt is the access token expiration time.
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
	// LastUpdated is when this credential was last stored.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Expired reports whether the access token has expired.
func (c *Credential) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// credentialsFile is the on-disk document: one credential per user.
type credentialsFile struct {
	Users map[string]Credential `yaml:"users"`
}

// Store manages encrypted per-user credential storage.
type Store struct {
	mu             sync.Mutex
	credentialsDir string
	encryptionKey  []byte
	keyProvider    KeyProvider
}

// NewStore creates a credential store using the default key provider.
func NewStore() (*Store, error) {
	provider, err := GetDefaultKeyProvider()
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreWithKeyProvider(provider)
}

// NewStoreWithKeyProvider creates a credential store with a custom key
// provider. Used by tests.
func NewStoreWithKeyProvider(keyProvider KeyProvider) (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		credentialsDir: dir,
		encryptionKey:  key,
		keyProvider:    keyProvider,
	}, nil
}

// CredentialsDir returns the credentials directory. Uses
// $GENMINUTE_CONFIG_DIR if set, otherwise ~/.genminute.
func CredentialsDir() (string, error) {
	if dir := os.Getenv("GENMINUTE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultCredentialsDir), nil
}

// Save stores a user's credential, encrypting token fields.
func (s *Store) Save(cred *Credential) error {
	if cred.UserID == "" {
		return fmt.Errorf("credential user id is required: %w", gmerrors.ErrValidation)
	}
	if cred.AccessToken == "" {
		return fmt.Errorf("credential access token is required: %w", gmerrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadFile()
	if err != nil {
		return err
	}

	stored := *cred
	stored.LastUpdated = time.Now()

	if stored.AccessToken, err = s.encrypt(cred.AccessToken); err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	if cred.RefreshToken != "" {
		if stored.RefreshToken, err = s.encrypt(cred.RefreshToken); err != nil {
			return fmt.Errorf("encrypting refresh token: %w", err)
		}
	}

	doc.Users[cred.UserID] = stored
	return s.writeFile(doc)
}

// Get returns the decrypted credential for a user. Returns
// ErrNoAuthorization when none is stored or the token has expired.
func (s *Store) Get(userID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadFile()
	if err != nil {
		return nil, err
	}

	stored, ok := doc.Users[userID]
	if !ok {
		return nil, fmt.Errorf("no calendar authorization for %s: %w", userID, gmerrors.ErrNoAuthorization)
	}

	cred := stored
	if cred.AccessToken, err = s.decrypt(stored.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}
	if stored.RefreshToken != "" {
		if cred.RefreshToken, err = s.decrypt(stored.RefreshToken); err != nil {
			return nil, fmt.Errorf("decrypting refresh token: %w", err)
		}
	}

	if cred.Expired() {
		return nil, fmt.Errorf("authorization for %s expired at %s: %w",
			userID, cred.ExpiresAt.Format(time.RFC3339), gmerrors.ErrNoAuthorization)
	}
	return &cred, nil
}

// Token implements the calendar authorization source.
func (s *Store) Token(_ context.Context, userID string) (string, error) {
	cred, err := s.Get(userID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Delete removes a user's stored credential.
func (s *Store) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadFile()
	if err != nil {
		return err
	}
	if _, ok := doc.Users[userID]; !ok {
		return nil
	}
	delete(doc.Users, userID)
	return s.writeFile(doc)
}

// Users lists the user IDs with stored credentials.
func (s *Store) Users() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(doc.Users))
	for id := range doc.Users {
		users = append(users, id)
	}
	return users, nil
}

// KeyDescription reports where the encryption key lives, for doctor
// output.
func (s *Store) KeyDescription() string {
	return s.keyProvider.Description()
}

func (s *Store) credentialsPath() string {
	return filepath.Join(s.credentialsDir, DefaultCredentialsFile)
}

func (s *Store) loadFile() (*credentialsFile, error) {
	doc := &credentialsFile{Users: map[string]Credential{}}

	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if doc.Users == nil {
		doc.Users = map[string]Credential{}
	}
	return doc, nil
}

func (s *Store) writeFile(doc *credentialsFile) error {
	if err := os.MkdirAll(s.credentialsDir, 0o700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.WriteFile(s.credentialsPath(), data, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}
	return string(plaintext), nil
}

// MaskToken returns a masked token with first/last characters visible.
func MaskToken(token string) string {
	if len(token) <= 20 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..." + token[len(token)-8:]
}

// FormatExpiry formats a credential expiry for display.
func FormatExpiry(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "never"
	}
	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return "expired"
	}
	if remaining < time.Hour {
		return fmt.Sprintf("%d minutes", int(remaining.Minutes()))
	}
	if remaining < 24*time.Hour {
		return fmt.Sprintf("%d hours", int(remaining.Hours()))
	}
	return fmt.Sprintf("%d days", int(remaining.Hours()/24))
}

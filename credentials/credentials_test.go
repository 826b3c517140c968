package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
)

type testKeyProvider struct{}

func (testKeyProvider) GetKey() ([]byte, error) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key, nil
}

func (testKeyProvider) Description() string { return "test key" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("GENMINUTE_CONFIG_DIR", t.TempDir())
	store, err := NewStoreWithKeyProvider(testKeyProvider{})
	require.NoError(t, err)
	return store
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(&Credential{
		UserID:       "alice",
		AccessToken:  "ya29.access-token-value",
		RefreshToken: "refresh-token-value",
	})
	require.NoError(t, err)

	cred, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "ya29.access-token-value", cred.AccessToken)
	assert.Equal(t, "refresh-token-value", cred.RefreshToken)
	assert.False(t, cred.LastUpdated.IsZero())
}

func TestTokensAreEncryptedOnDisk(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Credential{
		UserID:      "alice",
		AccessToken: "plaintext-secret",
	}))

	data, err := os.ReadFile(filepath.Join(os.Getenv("GENMINUTE_CONFIG_DIR"), DefaultCredentialsFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "plaintext-secret")

	var doc credentialsFile
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.Users["alice"].AccessToken)
}

func TestGetUnknownUserIsNoAuthorization(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("nobody")
	assert.True(t, gmerrors.IsNoAuthorization(err))

	_, err = store.Token(context.Background(), "nobody")
	assert.True(t, gmerrors.IsNoAuthorization(err))
}

func TestExpiredCredentialIsNoAuthorization(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Credential{
		UserID:      "alice",
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	_, err := store.Get("alice")
	assert.True(t, gmerrors.IsNoAuthorization(err))
}

func TestMultipleUsersAreIsolated(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Credential{UserID: "alice", AccessToken: "tok-a"}))
	require.NoError(t, store.Save(&Credential{UserID: "bob", AccessToken: "tok-b"}))

	tok, err := store.Token(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", tok)

	users, err := store.Users()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	require.NoError(t, store.Delete("alice"))
	_, err = store.Get("alice")
	assert.True(t, gmerrors.IsNoAuthorization(err))
	_, err = store.Get("bob")
	assert.NoError(t, err)
}

func TestSaveValidation(t *testing.T) {
	store := newTestStore(t)
	assert.True(t, gmerrors.IsValidation(store.Save(&Credential{AccessToken: "tok"})))
	assert.True(t, gmerrors.IsValidation(store.Save(&Credential{UserID: "alice"})))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "********", MaskToken("12345678"))
	masked := MaskToken("ya29.a-very-long-access-token-value")
	assert.Contains(t, masked, "...")
	assert.NotContains(t, masked, "long-access")
}

func TestEnvKeyProvider(t *testing.T) {
	t.Setenv("TEST_ENC_KEY", "")
	p := NewEnvKeyProvider("TEST_ENC_KEY")
	_, err := p.GetKey()
	assert.Error(t, err)

	t.Setenv("TEST_ENC_KEY", "0001020304050607080910111213141516171819202122232425262728293031")
	key, err := p.GetKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	t.Setenv("TEST_ENC_KEY", "abcd")
	_, err = p.GetKey()
	assert.Error(t, err)
}

func TestPassphraseKeyProviderIsDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	p1 := NewPassphraseKeyProvider("correct horse", salt)
	p2 := NewPassphraseKeyProvider("correct horse", salt)
	k1, err := p1.GetKey()
	require.NoError(t, err)
	k2, err := p2.GetKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	p3 := NewPassphraseKeyProvider("battery staple", salt)
	k3, err := p3.GetKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/models"
)

func testKeys(t *testing.T, versions ...int) map[int][]byte {
	t.Helper()
	keys := make(map[int][]byte, len(versions))
	for _, v := range versions {
		key, err := GenerateKey()
		require.NoError(t, err)
		keys[v] = key
	}
	return keys
}

func TestKeychain_RoundTrip(t *testing.T) {
	kc, err := NewKeychain(testKeys(t, 1))
	require.NoError(t, err)

	note := models.Note{
		ItemHeader: models.ItemHeader{ID: "note-1", Type: models.ItemNote, DateModified: 42},
		Title:      "groceries",
	}

	env, err := kc.Encrypt(1, note)
	require.NoError(t, err)

	assert.Equal(t, "note-1", env.ID)
	assert.Equal(t, 1, env.KeyVersion)
	assert.Equal(t, models.EnvelopeAlg, env.Alg)
	assert.NotEmpty(t, env.Cipher)
	assert.NotEmpty(t, env.IV)
	assert.Positive(t, env.Length)

	var got models.Note
	require.NoError(t, kc.Decrypt(env, &got))
	assert.Equal(t, note, got)
}

func TestKeychain_ListKeysNewestFirst(t *testing.T) {
	kc, err := NewKeychain(testKeys(t, 1, 3, 2))
	require.NoError(t, err)

	infos := kc.ListKeys()
	require.Len(t, infos, 3)
	assert.Equal(t, 3, infos[0].Version)
	assert.Equal(t, 2, infos[1].Version)
	assert.Equal(t, 1, infos[2].Version)
}

func TestKeychain_UnknownKeyVersion(t *testing.T) {
	kc, err := NewKeychain(testKeys(t, 1))
	require.NoError(t, err)

	_, err = kc.Encrypt(2, models.Note{})
	assert.ErrorIs(t, err, ErrUnknownKeyVersion)

	err = kc.Decrypt(models.EncryptedEnvelope{KeyVersion: 7}, &models.Note{})
	assert.ErrorIs(t, err, ErrUnknownKeyVersion)
}

func TestKeychain_WrongKeyFailsAuth(t *testing.T) {
	kcA, err := NewKeychain(testKeys(t, 1))
	require.NoError(t, err)
	kcB, err := NewKeychain(testKeys(t, 1))
	require.NoError(t, err)

	env, err := kcA.Encrypt(1, models.Note{ItemHeader: models.ItemHeader{ID: "n"}})
	require.NoError(t, err)

	var got models.Note
	err = kcB.Decrypt(env, &got)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestKeychain_AddKeyRotation(t *testing.T) {
	kc, err := NewKeychain(testKeys(t, 1))
	require.NoError(t, err)

	newKey, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, kc.AddKey(2, newKey))
	assert.Error(t, kc.AddKey(3, []byte("short")))

	infos := kc.ListKeys()
	require.Len(t, infos, 2)
	assert.Equal(t, 2, infos[0].Version)

	// old envelopes still decrypt with their stamped version
	env, err := kc.Encrypt(1, models.Note{ItemHeader: models.ItemHeader{ID: "old"}})
	require.NoError(t, err)
	var got models.Note
	require.NoError(t, kc.Decrypt(env, &got))
	assert.Equal(t, "old", got.ID)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := DeriveKey("master-password", salt)
	k2 := DeriveKey("master-password", salt)
	k3 := DeriveKey("other-password", salt)

	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/quillvault/syncengine/models"
)

var (
	// ErrUnknownKeyVersion means an envelope is stamped with a key version
	// this device does not hold (e.g. a rotation it has not learned yet).
	ErrUnknownKeyVersion = errors.New("unknown key version")

	// ErrDecryptFailed means the ciphertext did not authenticate under the
	// stamped key: corruption, or a key mismatch across devices.
	ErrDecryptFailed = errors.New("decryption failed")
)

// keychain is the private implementation of [Gateway]. It holds the
// account's data-encryption keys by version and encrypts with AES-256-GCM.
type keychain struct {
	mu   sync.RWMutex
	keys map[int][]byte
}

// NewKeychain constructs a [Gateway] over the given version → key map. Keys
// must be 32 bytes (AES-256). The map is copied.
func NewKeychain(keys map[int][]byte) (Gateway, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keychain requires at least one key")
	}
	kc := &keychain{keys: make(map[int][]byte, len(keys))}
	for v, k := range keys {
		if len(k) != 32 {
			return nil, fmt.Errorf("key version %d: want 32 bytes, got %d", v, len(k))
		}
		kc.keys[v] = append([]byte(nil), k...)
	}
	return kc, nil
}

// AddKey implements [Gateway]. An existing version is replaced.
func (k *keychain) AddKey(version int, key []byte) error {
	if len(key) != 32 {
		return fmt.Errorf("key version %d: want 32 bytes, got %d", version, len(key))
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[version] = append([]byte(nil), key...)
	return nil
}

// ListKeys implements [Gateway]. Versions are returned newest-first;
// Collector always encrypts with the first entry.
func (k *keychain) ListKeys() []KeyInfo {
	k.mu.RLock()
	defer k.mu.RUnlock()

	infos := make([]KeyInfo, 0, len(k.keys))
	for v := range k.keys {
		infos = append(infos, KeyInfo{Version: v})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Version > infos[j].Version })
	return infos
}

// Encrypt implements [Gateway]. The envelope carries the IV separately from
// the ciphertext and records the plaintext length, matching the wire shape
// other devices expect.
func (k *keychain) Encrypt(keyVersion int, item any) (models.EncryptedEnvelope, error) {
	key, err := k.key(keyVersion)
	if err != nil {
		return models.EncryptedEnvelope{}, err
	}

	plaintext, err := json.Marshal(item)
	if err != nil {
		return models.EncryptedEnvelope{}, fmt.Errorf("marshal item: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return models.EncryptedEnvelope{}, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return models.EncryptedEnvelope{}, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	env := models.EncryptedEnvelope{
		Version:    models.SchemaVersion,
		KeyVersion: keyVersion,
		Cipher:     base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Alg:        models.EnvelopeAlg,
		Length:     len(plaintext),
	}
	if id, ok := itemID(plaintext); ok {
		env.ID = id
	}
	return env, nil
}

// Decrypt implements [Gateway].
func (k *keychain) Decrypt(env models.EncryptedEnvelope, target any) error {
	key, err := k.key(env.KeyVersion)
	if err != nil {
		return err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.Cipher)
	if err != nil {
		return fmt.Errorf("decode cipher: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return fmt.Errorf("decode iv: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}
	if len(iv) != gcm.NonceSize() {
		return fmt.Errorf("%w: bad iv length %d", ErrDecryptFailed, len(iv))
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	if err := json.Unmarshal(plaintext, target); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (k *keychain) key(version int) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	key, ok := k.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKeyVersion, version)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// itemID pulls the record id out of the serialized payload so the envelope
// can be routed without decryption.
func itemID(plaintext []byte) (string, bool) {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(plaintext, &probe); err != nil || probe.ID == "" {
		return "", false
	}
	return probe.ID, true
}

// DeriveKey derives a 256-bit data-encryption key from a password and salt
// using Argon2id with the OWASP-recommended parameters (64 MiB, 1 iteration,
// 4 threads). Used by the application's bootstrap flow and by tests; the
// sync core itself only ever consumes already-derived keys.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// GenerateKey reads a fresh random 256-bit key from the OS CSPRNG, for key
// rotation.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

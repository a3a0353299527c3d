package tokenstore

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceLength = 24

var _ Store = (*EncryptedStore)(nil)

// EncryptedStore is a FileStore variant that seals the token pair with
// nacl/secretbox before it touches disk. The key comes from configuration
// and never leaves the process.
type EncryptedStore struct {
	path   string
	key    [32]byte
	lock   sync.RWMutex
	tokens Tokens
}

// NewEncryptedStore loads and opens any previously sealed tokens from path.
// A missing file starts the store empty. A file that fails to open with the
// given key is treated as logged out rather than an error: the alternative
// is a client that can never start after a key rotation.
func NewEncryptedStore(path string, key []byte) (*EncryptedStore, error) {
	if len(key) != 32 {
		return nil, errors.Errorf("encrypted token store requires a 32-byte key, got %d", len(key))
	}
	es := &EncryptedStore{path: path}
	copy(es.key[:], key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return es, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read token file")
	}
	if tokens, ok := es.open(data); ok {
		es.tokens = tokens
	}
	return es, nil
}

func (es *EncryptedStore) Get() Tokens {
	es.lock.RLock()
	defer es.lock.RUnlock()
	return es.tokens
}

func (es *EncryptedStore) Set(tokens Tokens) error {
	es.lock.Lock()
	defer es.lock.Unlock()

	sealed, err := es.seal(tokens)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(es.path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	if err := os.WriteFile(es.path, sealed, 0o600); err != nil {
		return errors.Wrap(err, "write sealed token file")
	}
	es.tokens = tokens
	return nil
}

func (es *EncryptedStore) Clear() error {
	es.lock.Lock()
	defer es.lock.Unlock()

	es.tokens = Tokens{}
	if err := os.Remove(es.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

func (es *EncryptedStore) seal(tokens Tokens) ([]byte, error) {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return nil, errors.Wrap(err, "marshal tokens")
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &es.key), nil
}

func (es *EncryptedStore) open(sealed []byte) (Tokens, bool) {
	if len(sealed) < nonceLength {
		return Tokens{}, false
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plaintext, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &es.key)
	if !ok {
		return Tokens{}, false
	}
	var tokens Tokens
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return Tokens{}, false
	}
	return tokens, true
}

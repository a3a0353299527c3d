package config

import "encoding/hex"

type StorageConfig interface {
	GetTokenFilePath() string
	GetTokenStoreKey() []byte
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetTokenFilePath() string {
	return GetEnv("CARTOMAP_TOKEN_FILE", "./data/tokens.json")
}

// GetTokenStoreKey returns the 32-byte key used to seal tokens at rest,
// decoded from a hex env var. Returns nil when unset or malformed, in which
// case tokens are stored in plaintext.
func (Storage) GetTokenStoreKey() []byte {
	key, err := hex.DecodeString(GetEnv("CARTOMAP_STORE_KEY", ""))
	if err != nil || len(key) != 32 {
		return nil
	}
	return key
}

package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the token pair in a JSON file. Writes go to a temp file
// followed by a rename so a crash mid-write never leaves a torn pair on disk.
// Reads are served from memory; the file is only parsed at construction.
type FileStore struct {
	path   string
	lock   sync.RWMutex
	tokens Tokens
}

// NewFileStore loads any previously persisted tokens from path. A missing
// file is not an error; the store starts empty.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read token file")
	}
	if err := json.Unmarshal(data, &fs.tokens); err != nil {
		// A corrupt token file is equivalent to being logged out.
		fs.tokens = Tokens{}
	}
	return fs, nil
}

func (fs *FileStore) Get() Tokens {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.tokens
}

func (fs *FileStore) Set(tokens Tokens) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.write(tokens); err != nil {
		return err
	}
	fs.tokens = tokens
	return nil
}

func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.tokens = Tokens{}
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

func (fs *FileStore) write(tokens Tokens) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal tokens")
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return errors.Wrap(err, "create temp token file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp token file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp token file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod token file")
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename token file")
	}
	return nil
}

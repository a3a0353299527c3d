package storefakes

import (
	"sync"

	"github.com/cartomap/cartomap-client/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory token store for tests.
type FakeStore struct {
	lock   sync.RWMutex
	tokens tokenstore.Tokens

	SetErr   error // returned from Set when non-nil
	setCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Get() tokenstore.Tokens {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.tokens
}

func (fs *FakeStore) Set(tokens tokenstore.Tokens) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.SetErr != nil {
		return fs.SetErr
	}
	fs.tokens = tokens
	fs.setCalls++
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.tokens = tokenstore.Tokens{}
	return nil
}

// SetCalls returns how many times Set has succeeded.
func (fs *FakeStore) SetCalls() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.setCalls
}

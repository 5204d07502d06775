package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// fakeKVStore is an in-memory KVStore with TTLs, for unit tests only
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
	// failWith, when set, is returned by every call
	failWith error
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]fakeKVItem)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return "", f.failWith
	}
	item, ok := f.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return f.failWith
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

func (f *fakeKVStore) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return 0, f.failWith
	}
	n, err := strconv.ParseInt(f.data[key].value, 10, 64)
	if err != nil && f.data[key].value != "" {
		return 0, errors.New("value is not an integer")
	}
	n++
	f.data[key] = fakeKVItem{value: strconv.FormatInt(n, 10)}
	return n, nil
}

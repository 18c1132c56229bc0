package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeClient is an in-memory RedisClient. Expirations are recorded, not enforced.
type fakeClient struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failAll error
	gets    int
}

var _ RedisClient = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Ping(context.Context) error { return f.failAll }

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.data[key] = str(value)
	f.ttls[key] = exp
	return nil
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return false, f.failAll
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = str(value)
	f.ttls[key] = exp
	return true, nil
}

func (f *fakeClient) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failAll != nil {
		return "", f.failAll
	}
	v, ok := f.data[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (f *fakeClient) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return 0, f.failAll
	}
	var n int64
	fmt.Sscan(f.data[key], &n)
	n++
	f.data[key] = fmt.Sprint(n)
	return n, nil
}

func (f *fakeClient) Expire(_ context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = exp
	return f.failAll
}

func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return f.failAll
}

func (f *fakeClient) DelIfEqual(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return false, f.failAll
	}
	if f.data[key] != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func str(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

var errDown = errors.New("connection refused")

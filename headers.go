package apimanager

import (
	"net/http"
	"sync/atomic"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAppVersion    = "AppVersion"
	HeaderUserAgent     = "User-Agent"
	HeaderContentType   = "Content-Type"
)

// HeaderStore is the header set merged into every outgoing request.
//
// Writes copy the current set and swap the copy in, so readers never take a
// lock and always see a complete set. A build racing with a write sees either
// the old or the new value, never a torn one.
type HeaderStore struct {
	current atomic.Pointer[http.Header]
}

// NewHeaderStore returns an empty store.
func NewHeaderStore() *HeaderStore {
	hs := &HeaderStore{}
	h := http.Header{}
	hs.current.Store(&h)
	return hs
}

func (hs *HeaderStore) load() http.Header {
	return *hs.current.Load()
}

// update applies fn to a private copy and publishes it. fn returns false to
// skip publishing.
func (hs *HeaderStore) update(fn func(h http.Header) bool) {
	for {
		old := hs.current.Load()
		next := old.Clone()
		if next == nil {
			next = http.Header{}
		}
		if !fn(next) {
			return
		}
		if hs.current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetAuth sets the bearer Authorization header. An empty token stores an empty
// value. Nothing is published when the value is unchanged.
func (hs *HeaderStore) SetAuth(token string) {
	value := ""
	if token != "" {
		value = "Bearer " + token
	}
	hs.update(func(h http.Header) bool {
		if vals, ok := h[HeaderAuthorization]; ok && len(vals) == 1 && vals[0] == value {
			return false
		}
		h.Set(HeaderAuthorization, value)
		return true
	})
}

// Set replaces a header value.
func (hs *HeaderStore) Set(key, value string) {
	hs.update(func(h http.Header) bool {
		if h.Get(key) == value && len(h.Values(key)) == 1 {
			return false
		}
		h.Set(key, value)
		return true
	})
}

// RemoveHeader deletes every value stored under key.
func (hs *HeaderStore) RemoveHeader(key string) {
	hs.update(func(h http.Header) bool {
		if _, ok := h[http.CanonicalHeaderKey(key)]; !ok {
			return false
		}
		h.Del(key)
		return true
	})
}

// Get returns the first value for key.
func (hs *HeaderStore) Get(key string) string {
	return hs.load().Get(key)
}

// Snapshot returns a copy of the current header set.
func (hs *HeaderStore) Snapshot() http.Header {
	return hs.load().Clone()
}

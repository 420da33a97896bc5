package engine

import (
	"net/url"
	"sync"
	"time"
)

// DomainMemory remembers hosts whose rendered fetch recently failed so that
// further pages of the same store skip straight to plain mode.
type DomainMemory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates a DomainMemory whose entries live for ttl.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		expires: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// MarkRenderFailed records a rendered-mode failure for the URL's host.
func (dm *DomainMemory) MarkRenderFailed(rawURL string) {
	host := hostOf(rawURL)
	if host == "" || dm.ttl <= 0 {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.expires[host] = dm.now().Add(dm.ttl)
	dm.pruneLocked()
}

// RenderDisabled reports whether rendered mode should be skipped for the URL's host.
func (dm *DomainMemory) RenderDisabled(rawURL string) bool {
	host := hostOf(rawURL)
	dm.mu.Lock()
	defer dm.mu.Unlock()
	exp, ok := dm.expires[host]
	if !ok {
		return false
	}
	if dm.now().After(exp) {
		delete(dm.expires, host)
		return false
	}
	return true
}

// pruneLocked drops expired hosts. Called on write so the map stays bounded
// by the number of distinct failing hosts within one TTL.
func (dm *DomainMemory) pruneLocked() {
	now := dm.now()
	for host, exp := range dm.expires {
		if now.After(exp) {
			delete(dm.expires, host)
		}
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

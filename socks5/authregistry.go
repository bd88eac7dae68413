package socks5

import (
	"sync"

	"github.com/ensonmj/revsocks5/internal/socket"
)

// AuthRegistry is the thread-safe "auth-once"/static-whitelist allow-list:
// a reader-writer-locked set of addresses granted passwordless access. An
// address, once added, is never removed for the lifetime of the process.
//
// Go's sync.RWMutex cannot fail to acquire the way a pthread rwlock can
// under EAGAIN/EDEADLK, so a C-style "treat a failed lock as a
// conservative no-op" fallback has no observable effect here — reads and
// writes simply block until they can proceed, which is the idiomatic and
// strictly stronger behavior.
type AuthRegistry struct {
	mu   sync.RWMutex
	addr []socket.Address
}

// NewAuthRegistry builds a registry pre-populated with a static whitelist
// (the -w flag).
func NewAuthRegistry(whitelist []socket.Address) *AuthRegistry {
	return &AuthRegistry{addr: append([]socket.Address(nil), whitelist...)}
}

// Contains performs a read-locked linear scan for addr.
func (r *AuthRegistry) Contains(addr socket.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contains(addr)
}

func (r *AuthRegistry) contains(addr socket.Address) bool {
	for _, a := range r.addr {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}

// InsertIfAbsent write-locks the registry, checks membership, and appends
// addr only if it isn't already present. This is how "auth-once" promotion
// avoids duplicate entries after successive successful logins from the
// same IP.
func (r *AuthRegistry) InsertIfAbsent(addr socket.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contains(addr) {
		return
	}
	r.addr = append(r.addr, addr)
}

package news

import (
	"fmt"
	"sync"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
)

var ErrNoAPIKeys = fmt.Errorf("%w: no news provider API keys configured", services.ErrExternalService)

// KeyRotator hands out provider API keys round-robin, one per request.
type KeyRotator struct {
	mu   sync.Mutex
	keys []string
	next int
}

func NewKeyRotator(keys []string) *KeyRotator {
	var clean []string
	for _, k := range keys {
		if k != "" {
			clean = append(clean, k)
		}
	}
	return &KeyRotator{keys: clean}
}

func (r *KeyRotator) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return "", ErrNoAPIKeys
	}
	key := r.keys[r.next]
	r.next = (r.next + 1) % len(r.keys)
	return key, nil
}

func (r *KeyRotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

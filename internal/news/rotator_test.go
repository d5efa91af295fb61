package news

import (
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/services"
)

func TestKeyRotatorRoundRobin(t *testing.T) {
	r := NewKeyRotator([]string{"k1", "", "k2", "k3"})
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	want := []string{"k1", "k2", "k3", "k1", "k2"}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != w {
			t.Fatalf("call %d: got %q, want %q", i, got, w)
		}
	}
}

func TestKeyRotatorEmpty(t *testing.T) {
	_, err := NewKeyRotator(nil).Next()
	if !errors.Is(err, ErrNoAPIKeys) || !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected ErrNoAPIKeys, got %v", err)
	}
}

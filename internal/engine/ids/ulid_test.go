package ids

import (
	"sync"
	"testing"
)

func TestNewULIDFormat(t *testing.T) {
	id := NewULID()
	if len(id) != 26 {
		t.Fatalf("expected 26 characters, got %d (%s)", len(id), id)
	}
}

func TestNewULIDMonotonicWithinProcess(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		if next <= prev {
			t.Fatalf("ULIDs not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestNewULIDConcurrentUnique(t *testing.T) {
	const n = 500
	var mu sync.Mutex
	seen := make(map[string]struct{}, n)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/10; j++ {
				id := NewULID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique IDs, got %d", n, len(seen))
	}
}

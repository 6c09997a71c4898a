package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestULIDMonotonicWithinMillisecond(t *testing.T) {
	g := NewULIDGenerator()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	prev := ""
	for i := 0; i < 100; i++ {
		id, err := g.Generate(at)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !ValidULID(id) {
			t.Fatalf("invalid ULID %q", id)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, id)
		}
		prev = id
	}
}

func TestULIDConcurrentUnique(t *testing.T) {
	g := NewULIDGenerator()
	at := time.Now()

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id, err := g.Generate(at)
				if err != nil {
					t.Errorf("Generate: %v", err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 400 {
		t.Fatalf("got %d unique ids, want 400", len(seen))
	}
}

func TestUUIDGenerator(t *testing.T) {
	id, err := NewUUIDGenerator().Generate(time.Time{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.Version() != 4 {
		t.Fatalf("not a v4 uuid: %q (%v)", id, err)
	}
}

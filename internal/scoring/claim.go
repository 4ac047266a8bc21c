package scoring

import (
	"context"
	"fmt"
	"sync"
)

// Claimer grants exclusive work on one (krCode, person) cell.
// Claim returns ErrClaimHeld when another worker owns the cell.
type Claimer interface {
	Claim(ctx context.Context, krCode, person string) (release func(), err error)
}

// LocalClaimer serializes cells within a single process.
type LocalClaimer struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalClaimer() *LocalClaimer {
	return &LocalClaimer{held: make(map[string]struct{})}
}

func (l *LocalClaimer) Claim(_ context.Context, krCode, person string) (func(), error) {
	key := CellKey(krCode, person)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrClaimHeld, key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func CellKey(krCode, person string) string {
	return krCode + "\x1f" + person
}

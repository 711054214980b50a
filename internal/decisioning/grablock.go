package decisioning

import (
	"fmt"
	"sync"
)

// GrabLock serializes dispatch per target entity so a scheduled sweep
// and an interactive grab cannot double-grab the same item.
type GrabLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func NewGrabLock() *GrabLock {
	return &GrabLock{locks: make(map[string]struct{})}
}

// GrabKey identifies one grab target. Season grabs key on the season,
// not just the series, so different seasons can dispatch concurrently.
func GrabKey(mediaType string, mediaID int64, seasonNumber int) string {
	if seasonNumber > 0 {
		return fmt.Sprintf("%s:%d:s%d", mediaType, mediaID, seasonNumber)
	}
	return fmt.Sprintf("%s:%d", mediaType, mediaID)
}

// TryAcquire claims the key. It returns false when another grab for
// the same target is in flight.
func (g *GrabLock) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.locks[key]; held {
		return false
	}
	g.locks[key] = struct{}{}
	return true
}

// Release frees the key.
func (g *GrabLock) Release(key string) {
	g.mu.Lock()
	delete(g.locks, key)
	g.mu.Unlock()
}

package decisioning

import "testing"

func TestGrabLock(t *testing.T) {
	lock := NewGrabLock()
	key := GrabKey("movie", 42, 0)

	if !lock.TryAcquire(key) {
		t.Fatal("first acquire should succeed")
	}
	if lock.TryAcquire(key) {
		t.Error("second acquire should fail while held")
	}
	// A different target is unaffected.
	if !lock.TryAcquire(GrabKey("movie", 43, 0)) {
		t.Error("unrelated key should acquire")
	}

	lock.Release(key)
	if !lock.TryAcquire(key) {
		t.Error("acquire after release should succeed")
	}
}

func TestGrabKey_SeasonsAreDistinct(t *testing.T) {
	if GrabKey("season", 7, 1) == GrabKey("season", 7, 2) {
		t.Error("different seasons of one series should key differently")
	}
	if GrabKey("movie", 7, 0) == GrabKey("episode", 7, 0) {
		t.Error("media type should be part of the key")
	}
}

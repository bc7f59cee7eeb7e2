package connect

import (
	"path/filepath"
	"testing"
)

func TestInstanceLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.lock")

	first := NewInstanceLock(path)
	ok, err := first.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("first TryLock should acquire")
	}

	second := NewInstanceLock(path)
	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if ok {
		t.Fatal("second TryLock acquired a held lock")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	if !ok {
		t.Fatal("lock should be free after Unlock")
	}
	if err := second.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestInstanceLockUnlockWithoutLockIsNoop(t *testing.T) {
	l := NewInstanceLock(filepath.Join(t.TempDir(), "agent.lock"))
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock on unheld lock: %v", err)
	}
}

package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalSnapshotMissingIsZero(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, err := s.Snapshot(ctx, "epoch:main:1"); err != nil || g != 0 {
		t.Fatalf("Snapshot missing = %d,%v want 0,nil", g, err)
	}
}

func TestLocalBumpMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for want := uint64(1); want <= 3; want++ {
		g, err := s.Bump(ctx, "k")
		if err != nil || g != want {
			t.Fatalf("Bump = %d,%v want %d", g, err, want)
		}
	}
	if g, _ := s.Snapshot(ctx, "k"); g != 3 {
		t.Fatalf("Snapshot = %d want 3", g)
	}
	if g, _ := s.Snapshot(ctx, "other"); g != 0 {
		t.Fatalf("unrelated key = %d want 0", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Bump(ctx, "fresh"); err != nil {
		t.Fatal(err)
	}
	s.Cleanup(25 * time.Millisecond)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
	if g, _ := s.Snapshot(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh entry pruned, got %d", g)
	}
}

func TestLocalCloseIdempotent(t *testing.T) {
	s := NewLocalGenStore(time.Millisecond, time.Hour)
	_ = s.Close(context.Background())
	_ = s.Close(context.Background())
}

package blob

import (
	"context"
	"testing"
)

func TestPath(t *testing.T) {
	got := Path("c1", "d1", "report.pdf")
	want := "documents/c1/d1/report.pdf"
	if got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New("mem://localhost/ragline-test")

	path := Path("c1", "d1", "a.txt")
	payload := []byte("document body")

	if err := s.Put(ctx, path, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	exists, err := s.Exists(ctx, path)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("blob missing after Put")
	}

	data, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("Get = %q, want %q", data, payload)
	}

	if err := s.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	exists, err = s.Exists(ctx, path)
	if err != nil {
		t.Fatalf("Exists after delete: %v", err)
	}
	if exists {
		t.Fatal("blob still present after Delete")
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New("mem://localhost/ragline-test-2")

	if err := s.Delete(ctx, Path("c1", "d1", "missing.txt")); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestGetMissingFails(t *testing.T) {
	ctx := context.Background()
	s := New("mem://localhost/ragline-test-3")

	if _, err := s.Get(ctx, Path("c1", "d1", "missing.txt")); err == nil {
		t.Fatal("expected error for missing blob")
	}
}

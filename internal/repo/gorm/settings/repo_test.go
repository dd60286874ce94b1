package settings

import (
	"context"
	"testing"

	"github.com/cuihairu/arcade/internal/db"
)

func TestSetUpserts(t *testing.T) {
	gdb, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb, db.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := NewRepo(gdb)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "container_root"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := repo.Set(ctx, "container_root", "/a"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, "container_root", "/b"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := repo.Get(ctx, "container_root")
	if err != nil || !ok || v != "/b" {
		t.Fatalf("got %q ok=%v err=%v", v, ok, err)
	}
	all, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected single row, got %v", all)
	}
}

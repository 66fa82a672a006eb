package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s, dir
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInsertPrice_Dedup(t *testing.T) {
	s, _ := newTestStore(t)

	if !s.InsertPrice(3, "2024-03-05", 1, 1, 1500) {
		t.Fatal("first insert should report a new record")
	}
	if s.InsertPrice(3, "2024-03-05", 1, 1, 1500) {
		t.Fatal("duplicate key insert must be a no-op")
	}
	if len(s.prices) != 1 {
		t.Fatalf("expected 1 price record, got %d", len(s.prices))
	}

	// A differing cut index is a distinct natural key.
	if !s.InsertPrice(3, "2024-03-05", 1, 2, 1400) {
		t.Fatal("different cut index should insert")
	}
}

func TestGetOrCreateFamily_CaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)

	a := s.GetOrCreateFamily("Vacuno")
	b := s.GetOrCreateFamily(" vacuno ")
	if a != b {
		t.Fatalf("expected same family id for case/space variants, got %d and %d", a, b)
	}
	if a != 1 {
		t.Fatalf("first family should get id 1, got %d", a)
	}
	if got := s.GetOrCreateFamily("Porcino"); got != 2 {
		t.Fatalf("second family should get id 2, got %d", got)
	}
	if len(s.families) != 2 {
		t.Fatalf("expected 2 families, got %d", len(s.families))
	}
}

func TestGetOrCreateProduct_URLBackfill(t *testing.T) {
	s, _ := newTestStore(t)
	familyID := s.GetOrCreateFamily("Vacuno")

	first := s.GetOrCreateProduct(familyID, "Novillo", "")
	second := s.GetOrCreateProduct(familyID, "novillo", "/producto/novillo.php")
	if first != second {
		t.Fatalf("expected same product, got ids %d and %d", first, second)
	}
	if len(s.products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(s.products))
	}
	if got := s.products[0].URL; got != "/producto/novillo.php" {
		t.Errorf("expected url backfilled, got %q", got)
	}

	// An already populated URL is never overwritten.
	s.GetOrCreateProduct(familyID, "Novillo", "/otro.php")
	if got := s.products[0].URL; got != "/producto/novillo.php" {
		t.Errorf("expected original url kept, got %q", got)
	}
}

func TestGetOrCreateProduct_ScopedByFamily(t *testing.T) {
	s, _ := newTestStore(t)
	vacuno := s.GetOrCreateFamily("Vacuno")
	porcino := s.GetOrCreateFamily("Porcino")

	a := s.GetOrCreateProduct(vacuno, "Lechal", "")
	b := s.GetOrCreateProduct(porcino, "Lechal", "")
	if a == b {
		t.Fatal("same name under different families must be distinct products")
	}
}

func TestUpsertAuction(t *testing.T) {
	s, _ := newTestStore(t)

	s.UpsertAuction(3, " Subasta de Huelva ")
	if len(s.auctions) != 1 {
		t.Fatalf("expected 1 auction, got %d", len(s.auctions))
	}
	if got := s.auctions[0].Name; got != "Subasta de Huelva" {
		t.Errorf("expected trimmed name, got %q", got)
	}

	// Empty incoming names never clobber the stored one.
	s.UpsertAuction(3, "  ")
	if got := s.auctions[0].Name; got != "Subasta de Huelva" {
		t.Errorf("expected name kept on empty upsert, got %q", got)
	}

	s.UpsertAuction(3, "Subasta de Ganado de Huelva")
	if got := s.auctions[0].Name; got != "Subasta de Ganado de Huelva" {
		t.Errorf("expected name updated, got %q", got)
	}
	if len(s.auctions) != 1 {
		t.Fatalf("upsert must not duplicate the auction, got %d records", len(s.auctions))
	}
}

func TestSaveAndReload(t *testing.T) {
	s, dir := newTestStore(t)

	s.UpsertAuction(3, "Subasta de Huelva")
	familyID := s.GetOrCreateFamily("Vacuno")
	productID := s.GetOrCreateProduct(familyID, "Novillo", "/producto/novillo.php")
	if !s.InsertPrice(3, "2024-03-05", productID, 1, 1500) {
		t.Fatal("insert should succeed")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := reloaded.GetOrCreateFamily("VACUNO"); got != familyID {
		t.Errorf("expected family id %d preserved across reload, got %d", familyID, got)
	}
	if got := reloaded.GetOrCreateProduct(familyID, "novillo", ""); got != productID {
		t.Errorf("expected product id %d preserved across reload, got %d", productID, got)
	}
	if reloaded.InsertPrice(3, "2024-03-05", productID, 1, 1500) {
		t.Error("price key must survive reload, insert should be a no-op")
	}
	if got := reloaded.GetOrCreateFamily("Porcino"); got != familyID+1 {
		t.Errorf("expected next surrogate id %d after reload, got %d", familyID+1, got)
	}
}

func TestOpen_MalformedCollectionDegrades(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, familiesFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write malformed file: %v", err)
	}

	s, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("open must tolerate a malformed collection: %v", err)
	}
	if got := s.GetOrCreateFamily("Vacuno"); got != 1 {
		t.Errorf("expected empty families after corruption, first id 1, got %d", got)
	}
}

func TestSave_EmptyStoreWritesLoadableFiles(t *testing.T) {
	s, dir := newTestStore(t)
	if err := s.Save(); err != nil {
		t.Fatalf("save empty store: %v", err)
	}
	for _, name := range []string{auctionsFile, familiesFile, productsFile, pricesFile} {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(raw) != "[]" {
			t.Errorf("%s: expected empty JSON array, got %q", name, string(raw))
		}
	}
}

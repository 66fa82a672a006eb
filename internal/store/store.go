// Package store is the deduplicating reconciliation layer between parsed
// rows and the persisted JSON collections. It maps natural keys to surrogate
// identifiers for auctions, families, products, and prices, and rewrites the
// full snapshot once per run.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpg486-ual/scrapping-tutorial/pkg/types"
)

// File names match the collections the site scraper has always written.
const (
	auctionsFile = "subastas.json"
	familiesFile = "familias.json"
	productsFile = "productos.json"
	pricesFile   = "preciosubasta.json"
)

type productKey struct {
	familyID int
	name     string
}

type priceKey struct {
	auctionID int
	date      string
	productID int
	cut       int
}

// Store owns the four collections plus their derived lookup indices. It is
// constructed once per run and passed explicitly to whoever needs it; all
// operations are synchronous and in-process.
type Store struct {
	dataDir string
	logger  *slog.Logger

	auctions []*types.Auction
	families []*types.Family
	products []*types.Product
	prices   []*types.Price

	auctionsByID   map[int]*types.Auction
	familiesByName map[string]*types.Family
	productsByKey  map[productKey]*types.Product
	priceKeys      map[priceKey]struct{}
}

// Open loads the persisted collections from dataDir and rebuilds all lookup
// indices. A missing or malformed file degrades to an empty collection for
// that kind rather than failing the whole store.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dataDir:        dataDir,
		logger:         logger,
		auctionsByID:   make(map[int]*types.Auction),
		familiesByName: make(map[string]*types.Family),
		productsByKey:  make(map[productKey]*types.Product),
		priceKeys:      make(map[priceKey]struct{}),
	}

	s.auctions = loadCollection[types.Auction](filepath.Join(dataDir, auctionsFile), logger)
	s.families = loadCollection[types.Family](filepath.Join(dataDir, familiesFile), logger)
	s.products = loadCollection[types.Product](filepath.Join(dataDir, productsFile), logger)
	s.prices = loadCollection[types.Price](filepath.Join(dataDir, pricesFile), logger)

	for _, a := range s.auctions {
		s.auctionsByID[a.ID] = a
	}
	for _, f := range s.families {
		s.familiesByName[normalizeKey(f.Name)] = f
	}
	for _, p := range s.products {
		s.productsByKey[productKey{familyID: p.FamilyID, name: normalizeKey(p.Name)}] = p
	}
	for _, p := range s.prices {
		s.priceKeys[priceKey{auctionID: p.AuctionID, date: p.Date, productID: p.ProductID, cut: p.Cut}] = struct{}{}
	}

	return s, nil
}

// UpsertAuction records the auction under its externally assigned id. A
// non-empty incoming name that differs from the stored one overwrites it.
func (s *Store) UpsertAuction(id int, name string) {
	name = strings.TrimSpace(name)
	stored, ok := s.auctionsByID[id]
	if !ok {
		record := &types.Auction{ID: id, Name: name}
		s.auctions = append(s.auctions, record)
		s.auctionsByID[id] = record
		return
	}
	if name != "" && stored.Name != name {
		stored.Name = name
	}
}

// GetOrCreateFamily resolves a family by case- and space-insensitive name,
// creating it with the next surrogate id on miss.
func (s *Store) GetOrCreateFamily(name string) int {
	key := normalizeKey(name)
	if existing, ok := s.familiesByName[key]; ok {
		return existing.ID
	}

	record := &types.Family{ID: nextID(s.families, func(f *types.Family) int { return f.ID }), Name: strings.TrimSpace(name)}
	s.families = append(s.families, record)
	s.familiesByName[key] = record
	return record.ID
}

// GetOrCreateProduct resolves a product by (family id, normalized name). On a
// hit the stored URL is backfilled if it was empty and the incoming one is
// not; on a miss the product is created with the next surrogate id.
func (s *Store) GetOrCreateProduct(familyID int, name, url string) int {
	key := productKey{familyID: familyID, name: normalizeKey(name)}
	if existing, ok := s.productsByKey[key]; ok {
		if url != "" && existing.URL == "" {
			existing.URL = url
		}
		return existing.ID
	}

	record := &types.Product{
		ID:       nextID(s.products, func(p *types.Product) int { return p.ID }),
		FamilyID: familyID,
		Name:     strings.TrimSpace(name),
		URL:      url,
	}
	s.products = append(s.products, record)
	s.productsByKey[key] = record
	return record.ID
}

// InsertPrice records a price under its four-part natural key. It reports
// whether a new record was inserted; a key already present is a no-op.
func (s *Store) InsertPrice(auctionID int, dateISO string, productID, cut, price int) bool {
	key := priceKey{auctionID: auctionID, date: dateISO, productID: productID, cut: cut}
	if _, exists := s.priceKeys[key]; exists {
		return false
	}

	s.prices = append(s.prices, &types.Price{
		AuctionID: auctionID,
		Date:      dateISO,
		ProductID: productID,
		Cut:       cut,
		Price:     price,
	})
	s.priceKeys[key] = struct{}{}
	return true
}

// Save rewrites all four collections. Each file is written independently via
// a temp file and rename, so a crash mid-save leaves the other collections'
// previously valid files untouched.
func (s *Store) Save() error {
	if err := writeCollection(filepath.Join(s.dataDir, auctionsFile), s.auctions); err != nil {
		return fmt.Errorf("save %s: %w", auctionsFile, err)
	}
	if err := writeCollection(filepath.Join(s.dataDir, familiesFile), s.families); err != nil {
		return fmt.Errorf("save %s: %w", familiesFile, err)
	}
	if err := writeCollection(filepath.Join(s.dataDir, productsFile), s.products); err != nil {
		return fmt.Errorf("save %s: %w", productsFile, err)
	}
	if err := writeCollection(filepath.Join(s.dataDir, pricesFile), s.prices); err != nil {
		return fmt.Errorf("save %s: %w", pricesFile, err)
	}
	return nil
}

// DataDir returns the directory holding the persisted collections.
func (s *Store) DataDir() string {
	return s.dataDir
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// nextID assigns surrogate ids as max(existing)+1, or 1 when empty. Ids are
// never reused even if an entity later goes stale.
func nextID[T any](items []*T, id func(*T) int) int {
	max := 0
	for _, item := range items {
		if v := id(item); v > max {
			max = v
		}
	}
	return max + 1
}

func loadCollection[T any](path string, logger *slog.Logger) []*T {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		logger.Warn("could not read collection, starting empty", "path", path, "error", err)
		return nil
	}

	var items []*T
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("discarding malformed collection", "path", path, "error", err)
		return nil
	}
	return items
}

func writeCollection[T any](path string, items []*T) error {
	if items == nil {
		items = []*T{}
	}
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

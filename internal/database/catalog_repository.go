package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
	"gopkg.in/yaml.v3"
)

// CatalogRepository reads buses and routes from the reference tables owned by the catalog service
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

var _ Catalog = (*CatalogRepository)(nil)

// GetBus retrieves a bus by ID
func (r *CatalogRepository) GetBus(ctx context.Context, id string) (*models.Bus, error) {
	var bus models.Bus
	err := r.db.GetContext(ctx, &bus, `
		SELECT id, bus_number, total_seats, created_at, updated_at
		FROM buses
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bus %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, models.NewStorageError("get bus", err)
	}
	return &bus, nil
}

// GetRoute retrieves a route by ID
func (r *CatalogRepository) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	var route models.Route
	err := r.db.GetContext(ctx, &route, `
		SELECT id, from_location, to_location, price, pickup_locations, created_at, updated_at
		FROM routes
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, models.NewStorageError("get route", err)
	}
	return &route, nil
}

// MemoryCatalog is a fixed in-process catalog used with the memory ledger
type MemoryCatalog struct {
	mu     sync.RWMutex
	buses  map[string]models.Bus
	routes map[string]models.Route
}

// NewMemoryCatalog creates an empty MemoryCatalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		buses:  make(map[string]models.Bus),
		routes: make(map[string]models.Route),
	}
}

var _ Catalog = (*MemoryCatalog)(nil)

// CatalogSeed is the document accepted by LoadCatalogSeed
type CatalogSeed struct {
	Buses  []models.Bus   `json:"buses"`
	Routes []models.Route `json:"routes"`
}

// LoadCatalogSeed builds a MemoryCatalog from a seed file. Files ending in
// .yaml or .yml are read as YAML with the same field names as the JSON form.
func LoadCatalogSeed(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert catalog seed: %w", err)
		}
	}
	var seed CatalogSeed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	c := NewMemoryCatalog()
	for _, b := range seed.Buses {
		if b.TotalSeats <= 0 {
			return nil, fmt.Errorf("bus %s: total_seats must be positive", b.ID)
		}
		c.PutBus(b)
	}
	for _, r := range seed.Routes {
		c.PutRoute(r)
	}
	return c, nil
}

// PutBus adds or replaces a bus
func (c *MemoryCatalog) PutBus(bus models.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buses[bus.ID] = bus
}

// PutRoute adds or replaces a route
func (c *MemoryCatalog) PutRoute(route models.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route.ID] = route
}

// GetBus retrieves a bus by ID
func (c *MemoryCatalog) GetBus(ctx context.Context, id string) (*models.Bus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bus, ok := c.buses[id]
	if !ok {
		return nil, fmt.Errorf("bus %s: %w", id, models.ErrNotFound)
	}
	return &bus, nil
}

// GetRoute retrieves a route by ID
func (c *MemoryCatalog) GetRoute(ctx context.Context, id string) (*models.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	route, ok := c.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %s: %w", id, models.ErrNotFound)
	}
	return &route, nil
}

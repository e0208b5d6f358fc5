package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

// DefaultCatalogPageSize is how many entries a numbered menu shows
const DefaultCatalogPageSize = 5

// CatalogService reads and extends the per-user bank, brand and category lists
type CatalogService struct {
	store    storage.Store
	pageSize int
}

// NewCatalogService creates a catalog gateway over store
func NewCatalogService(store storage.Store, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = DefaultCatalogPageSize
	}
	return &CatalogService{store: store, pageSize: pageSize}
}

// List returns the newest entries of scope for owner, one menu page at most
func (c *CatalogService) List(ctx context.Context, scope models.CatalogScope, owner string) ([]string, error) {
	return c.store.ListCatalog(ctx, scope, owner, c.pageSize)
}

// Lookup finds name ignoring case and returns the stored spelling
func (c *CatalogService) Lookup(ctx context.Context, scope models.CatalogScope, owner, name string) (string, bool, error) {
	entry, err := c.store.FindCatalogEntry(ctx, scope, owner, strings.TrimSpace(name))
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Name, true, nil
}

// Exists reports whether name is already in the catalog, ignoring case
func (c *CatalogService) Exists(ctx context.Context, scope models.CatalogScope, owner, name string) (bool, error) {
	_, found, err := c.Lookup(ctx, scope, owner, name)
	return found, err
}

// Create adds name to the catalog. Adding an existing name is a no-op.
func (c *CatalogService) Create(ctx context.Context, scope models.CatalogScope, owner, name string) error {
	return c.store.CreateCatalogEntry(ctx, &models.CatalogEntry{
		Scope: scope,
		Owner: owner,
		Name:  strings.TrimSpace(name),
	})
}

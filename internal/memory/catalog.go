package memory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
)

type Catalog struct {
	mu       sync.RWMutex
	packages map[string]bookings.Package
	addOns   map[string]bookings.AddOn
}

func NewCatalog() *Catalog {
	return &Catalog{
		packages: map[string]bookings.Package{},
		addOns:   map[string]bookings.AddOn{},
	}
}

func (c *Catalog) PutPackage(p bookings.Package) {
	c.mu.Lock()
	c.packages[p.TenantID+"|"+p.ID] = p
	c.mu.Unlock()
}

func (c *Catalog) PutAddOn(a bookings.AddOn) {
	c.mu.Lock()
	c.addOns[a.TenantID+"|"+a.ID] = a
	c.mu.Unlock()
}

func (c *Catalog) GetPackage(_ context.Context, tenantID, packageID string) (bookings.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packages[tenantID+"|"+packageID]
	if !ok {
		return bookings.Package{}, &bookings.NotFoundError{Resource: "package", ID: packageID}
	}
	return p, nil
}

func (c *Catalog) GetAddOns(_ context.Context, tenantID, packageID string, ids []string) ([]bookings.AddOn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]bookings.AddOn, 0, len(ids))
	for _, id := range ids {
		a, ok := c.addOns[tenantID+"|"+id]
		if ok && a.PackageID == packageID {
			out = append(out, a)
		}
	}
	return out, nil
}

package bookings

import (
	"context"
	"fmt"
)

type Quote struct {
	Package    Package
	LineItems  []LineItem
	TotalCents int64
	Currency   string
}

// Price computes the total from current catalog prices. Client-supplied
// amounts are never an input.
func Price(ctx context.Context, catalog Catalog, tenantID, packageID string, addOnIDs []string) (Quote, error) {
	if packageID == "" {
		return Quote{}, &ValidationError{Field: "packageId", Reason: "is required"}
	}
	pkg, err := catalog.GetPackage(ctx, tenantID, packageID)
	if err != nil {
		return Quote{}, err
	}
	if !pkg.Active {
		return Quote{}, &NotFoundError{Resource: "package", ID: packageID}
	}

	seen := make(map[string]bool, len(addOnIDs))
	for _, id := range addOnIDs {
		if id == "" {
			return Quote{}, &ValidationError{Field: "addOnIds", Reason: "contains an empty id"}
		}
		if seen[id] {
			return Quote{}, &ValidationError{Field: "addOnIds", Reason: fmt.Sprintf("duplicate add-on %q", id)}
		}
		seen[id] = true
	}

	q := Quote{Package: pkg, TotalCents: pkg.PriceCents, Currency: pkg.Currency}
	if len(addOnIDs) == 0 {
		return q, nil
	}

	addOns, err := catalog.GetAddOns(ctx, tenantID, packageID, addOnIDs)
	if err != nil {
		return Quote{}, err
	}
	byID := make(map[string]AddOn, len(addOns))
	for _, a := range addOns {
		byID[a.ID] = a
	}
	for _, id := range addOnIDs {
		a, ok := byID[id]
		if !ok || !a.Active {
			return Quote{}, &NotFoundError{Resource: "add-on", ID: id}
		}
		q.LineItems = append(q.LineItems, LineItem{AddOnID: a.ID, Name: a.Name, PriceCents: a.PriceCents})
		q.TotalCents += a.PriceCents
	}
	return q, nil
}

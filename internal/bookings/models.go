package bookings

import "time"

type Tenant struct {
	ID         string
	Name       string
	CalendarID string
}

type Package struct {
	ID         string
	TenantID   string
	Name       string
	PriceCents int64
	Currency   string
	Active     bool
}

type AddOn struct {
	ID         string
	TenantID   string
	PackageID  string
	Name       string
	PriceCents int64
	Active     bool
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

// LineItem is an add-on priced at the moment the booking was reserved.
type LineItem struct {
	AddOnID    string
	Name       string
	PriceCents int64
}

type Booking struct {
	ID           string
	TenantID     string
	PackageID    string
	CustomerID   string
	Contact      Contact
	EventDate    time.Time // civil date, UTC midnight
	LineItems    []LineItem
	PackageCents int64
	TotalCents   int64
	Currency     string
	Status       Status
	PaymentRef   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b Booking) AddOnIDs() []string {
	out := make([]string, 0, len(b.LineItems))
	for _, li := range b.LineItems {
		out = append(out, li.AddOnID)
	}
	return out
}

// NewBooking is the input of the reservation transaction. Amounts are never
// taken from here; the store prices the package and add-ons itself.
type NewBooking struct {
	PackageID  string
	Contact    Contact
	EventDate  time.Time
	AddOnIDs   []string
	PaymentRef string
}

type BlackoutDate struct {
	TenantID string
	Date     time.Time
	Reason   string
}

type ListFilter struct {
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
}

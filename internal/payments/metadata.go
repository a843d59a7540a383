package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/go-playground/validator/v10"
)

// Checkout session metadata keys. The webhook side reads back exactly what
// the checkout side wrote.
const (
	MetaTenantID  = "tenantId"
	MetaPackageID = "packageId"
	MetaEventDate = "eventDate"
	MetaEmail     = "email"
	MetaName      = "name"
	MetaPhone     = "phone"
	MetaAddOnIDs  = "addOnIds"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Metadata struct {
	TenantID  string   `validate:"required,max=64"`
	PackageID string   `validate:"required,max=64"`
	EventDate string   `validate:"required"`
	Email     string   `validate:"required,email,max=254"`
	Name      string   `validate:"required,max=200"`
	Phone     string   `validate:"omitempty,max=32"`
	AddOnIDs  []string `validate:"max=20,unique,dive,required,max=64"`
}

func BuildMetadata(tenantID, packageID string, date time.Time, c bookings.Contact, addOnIDs []string) map[string]string {
	ids, _ := json.Marshal(nonNil(addOnIDs))
	m := map[string]string{
		MetaTenantID:  tenantID,
		MetaPackageID: packageID,
		MetaEventDate: bookings.FormatDate(date),
		MetaEmail:     c.Email,
		MetaName:      c.Name,
		MetaAddOnIDs:  string(ids),
	}
	if c.Phone != "" {
		m[MetaPhone] = c.Phone
	}
	return m
}

// ParseMetadata validates processor metadata strictly. Any failure is a
// *bookings.ValidationError naming the first bad field.
func ParseMetadata(raw map[string]string) (Metadata, time.Time, error) {
	md := Metadata{
		TenantID:  strings.TrimSpace(raw[MetaTenantID]),
		PackageID: strings.TrimSpace(raw[MetaPackageID]),
		EventDate: strings.TrimSpace(raw[MetaEventDate]),
		Email:     strings.TrimSpace(raw[MetaEmail]),
		Name:      strings.TrimSpace(raw[MetaName]),
		Phone:     strings.TrimSpace(raw[MetaPhone]),
	}
	if s := strings.TrimSpace(raw[MetaAddOnIDs]); s != "" {
		if err := json.Unmarshal([]byte(s), &md.AddOnIDs); err != nil {
			return Metadata{}, time.Time{}, &bookings.ValidationError{Field: MetaAddOnIDs, Reason: "must be a JSON array of strings"}
		}
	}

	if err := validate.Struct(md); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Metadata{}, time.Time{}, &bookings.ValidationError{
				Field:  metaField(fe.StructField()),
				Reason: fmt.Sprintf("failed %q check", fe.Tag()),
			}
		}
		return Metadata{}, time.Time{}, &bookings.ValidationError{Reason: err.Error()}
	}

	date, err := bookings.ParseDate(md.EventDate)
	if err != nil {
		return Metadata{}, time.Time{}, err
	}
	return md, date, nil
}

func metaField(structField string) string {
	if i := strings.IndexByte(structField, '['); i >= 0 {
		structField = structField[:i]
	}
	switch structField {
	case "TenantID":
		return MetaTenantID
	case "PackageID":
		return MetaPackageID
	case "EventDate":
		return MetaEventDate
	case "Email":
		return MetaEmail
	case "Name":
		return MetaName
	case "Phone":
		return MetaPhone
	case "AddOnIDs":
		return MetaAddOnIDs
	}
	return structField
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

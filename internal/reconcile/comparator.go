package reconcile

import (
	"strings"

	"hometracker/server/internal/models"
)

// canonical is the provenance-normalized subset of fields two scrapes of
// the same listing are compared on. An empty string means the field is
// unknown for that provenance, and unknowns never count as differences.
type canonical struct {
	Name         string
	URL          string
	Price        string
	Availability string
	Address      string
	Telephone    string
	Condition    string
}

// canonicalFields extracts the comparable view of a listing for its source
// kind. HTML-fallback pages cannot produce availability, telephone or
// condition, so those stay unknown rather than comparing as empty.
func canonicalFields(listing *models.Listing) canonical {
	fields := canonical{
		Name:    listing.Name,
		URL:     listing.URL,
		Price:   normalizePrice(listing.Price),
		Address: listing.Address,
	}

	switch models.SourceKindFromTag(listing.DataSource) {
	case models.SourceStructured:
		fields.Availability = listing.Availability
		fields.Telephone = listing.Telephone
		fields.Condition = listing.Condition
	case models.SourceHTMLFallback:
		// not extractable from the fallback markup
	default:
		fields.Availability = listing.Availability
		fields.Telephone = listing.Telephone
		fields.Condition = listing.Condition
	}

	return fields
}

func normalizePrice(price string) string {
	return strings.NewReplacer("$", "", ",", "", " ", "").Replace(price)
}

// Changed reports whether a fresh scrape differs from the stored listing.
// A provenance change is always recorded as a change; otherwise fields are
// compared pairwise with unknowns skipped. Provenance is compared by
// SourceKind, so equivalent tags for the same extractor do not register.
func Changed(existing, current *models.Listing) bool {
	if models.SourceKindFromTag(existing.DataSource) != models.SourceKindFromTag(current.DataSource) {
		return true
	}

	prev := canonicalFields(existing)
	next := canonicalFields(current)

	return fieldDiffers(prev.Name, next.Name) ||
		fieldDiffers(prev.URL, next.URL) ||
		fieldDiffers(prev.Price, next.Price) ||
		fieldDiffers(prev.Availability, next.Availability) ||
		fieldDiffers(prev.Address, next.Address) ||
		fieldDiffers(prev.Telephone, next.Telephone) ||
		fieldDiffers(prev.Condition, next.Condition)
}

func fieldDiffers(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a != b
}

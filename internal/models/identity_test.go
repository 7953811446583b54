package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCommunityID(t *testing.T) {
	id := DeriveCommunityID("The Oaks, Plan 1.5", "https://example.com/oaks")
	assert.Equal(t, "https://example.com/oaks_The_Oaks_Plan_15", id)

	assert.Empty(t, DeriveCommunityID("", "https://example.com/oaks"))
	assert.Empty(t, DeriveCommunityID("The Oaks", ""))
}

func TestPermanentID_StableAcrossListingChurn(t *testing.T) {
	// The permanent id depends only on the community identity, never on
	// the listing it currently hangs off.
	a := PermanentID("https://example.com/oaks_The_Oaks")
	b := PermanentID("https://example.com/oaks_The_Oaks")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, PermanentID("https://example.com/oaks_The_Pines"))
}

func TestCityID_RegionOnlyWhenPresent(t *testing.T) {
	plain := CityID("Ventura", "Ventura County", "")
	regional := CityID("Ventura", "Ventura County", "Southern California")

	assert.Len(t, plain, 32)
	assert.NotEqual(t, plain, regional)
	assert.Equal(t, plain, CityID("Ventura", "Ventura County", ""))
}

func TestSourceKindFromTag(t *testing.T) {
	assert.Equal(t, SourceStructured, SourceKindFromTag("json_ld"))
	assert.Equal(t, SourceStructured, SourceKindFromTag("structured"))
	assert.Equal(t, SourceHTMLFallback, SourceKindFromTag("html_fallback"))
	assert.Equal(t, SourceUnknown, SourceKindFromTag("something else"))
}

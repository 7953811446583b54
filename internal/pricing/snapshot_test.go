package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hometracker/server/internal/models"
)

func trackedCommunity(price float64) models.Community {
	return models.Community{
		CommunityID: "https://example.com/oaks_The_Oaks",
		ListingID:   "oaks",
		Name:        "The Oaks",
		Price:       price,
	}
}

func seedTimeline(store *fakeTimelineStore, communityID string, price float64) {
	permanentID := models.PermanentID(communityID)
	store.Save(&models.PermanentRecord{
		PermanentID:   permanentID,
		CommunityID:   communityID,
		PriceTimeline: models.Timeline{{Date: time.Now().AddDate(0, 0, -1), Price: price}},
	})
}

func TestBuild_FirstObservationIsStable(t *testing.T) {
	builder := NewBuilder(newFakeTimelineStore(), 5.0, nil)

	snap, err := builder.Build(trackedCommunity(500000), time.Now())
	assert.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, models.ChangeStable, snap.ChangeType)
	assert.False(t, snap.IsSignificant)
	assert.Zero(t, snap.PreviousPrice)
	assert.Equal(t, "USD", snap.Currency)
}

func TestBuild_UnchangedPriceIsStable(t *testing.T) {
	store := newFakeTimelineStore()
	community := trackedCommunity(500000)
	seedTimeline(store, community.CommunityID, 500000)

	builder := NewBuilder(store, 5.0, nil)
	snap, err := builder.Build(community, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, models.ChangeStable, snap.ChangeType)
	assert.Zero(t, snap.ChangePercentage)
	assert.False(t, snap.IsSignificant)
}

func TestBuild_FivePercentIncreaseIsSignificant(t *testing.T) {
	store := newFakeTimelineStore()
	community := trackedCommunity(525000)
	seedTimeline(store, community.CommunityID, 500000)

	builder := NewBuilder(store, 5.0, nil)
	snap, err := builder.Build(community, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, models.ChangeIncrease, snap.ChangeType)
	assert.Equal(t, 5.0, snap.ChangePercentage)
	assert.Equal(t, 25000.0, snap.ChangeAmount)
	assert.True(t, snap.IsSignificant, "threshold is inclusive")
}

func TestBuild_SmallDecreaseIsNotSignificant(t *testing.T) {
	store := newFakeTimelineStore()
	community := trackedCommunity(495000)
	seedTimeline(store, community.CommunityID, 500000)

	builder := NewBuilder(store, 5.0, nil)
	snap, err := builder.Build(community, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, models.ChangeDecrease, snap.ChangeType)
	assert.Equal(t, -1.0, snap.ChangePercentage)
	assert.False(t, snap.IsSignificant)
}

func TestBuild_SkipsCommunitiesWithoutUsablePrice(t *testing.T) {
	builder := NewBuilder(newFakeTimelineStore(), 5.0, nil)

	snap, err := builder.Build(trackedCommunity(0), time.Now())
	assert.NoError(t, err)
	assert.Nil(t, snap)

	noID := trackedCommunity(500000)
	noID.CommunityID = ""
	snap, err = builder.Build(noID, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestBuild_KeepsExplicitCurrency(t *testing.T) {
	community := trackedCommunity(500000)
	community.Currency = "EUR"

	builder := NewBuilder(newFakeTimelineStore(), 5.0, nil)
	snap, err := builder.Build(community, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, "EUR", snap.Currency)
}

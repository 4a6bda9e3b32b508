package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carelink/internal/referral/models"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
)

func seedReferral(t *testing.T, store *InMemory, childID id.ChildID, created time.Time) *models.Referral {
	t.Helper()
	form := models.ReferralForm{
		CoverInfo: models.CoverInfo{
			RequestDate:   models.RequestDate{Year: 2026, Month: 3, Day: 14},
			CenterName:    "마음돌봄센터",
			CounselorName: "김상담",
		},
		BasicInfo: models.BasicInfo{
			ChildInfo: models.ChildInfo{Name: "이아동"},
			CareType:  models.CareTypeGeneral,
		},
	}
	r, err := models.New(id.NewReferralID(), childID, "guardian-1", form, created)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), r))
	return r
}

func TestInMemoryCompareAndSwap(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := seedReferral(t, store, "child-1", now)

	stale, err := store.FindByID(context.Background(), r.ID)
	require.NoError(t, err)

	require.NoError(t, r.MarkRecommended(now))
	require.NoError(t, store.Update(context.Background(), r))
	assert.Equal(t, int64(2), r.Version)

	// The stale copy still carries version 1 and must be rejected.
	require.NoError(t, stale.MarkRecommended(now))
	assert.ErrorIs(t, store.Update(context.Background(), stale), sentinel.ErrConflict)

	found, err := store.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.Version)
	assert.Equal(t, models.StatusRecommended, found.Status)
}

func TestInMemoryFindByIDReturnsCopy(t *testing.T) {
	store := NewInMemory()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := seedReferral(t, store, "child-1", now)

	loaded, err := store.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	loaded.Status = models.StatusRejected

	reloaded, err := store.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reloaded.Status, "mutating a loaded copy must not leak into the store")
}

func TestInMemoryListOrdersNewestFirst(t *testing.T) {
	store := NewInMemory()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedReferral(t, store, "child-1", base)
	second := seedReferral(t, store, "child-2", base.Add(time.Hour))

	rs, total, err := store.List(context.Background(), ListFilter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rs, 1)
	assert.Equal(t, second.ID, rs[0].ID)

	rs, total, err = store.List(context.Background(), ListFilter{Page: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, rs)
}

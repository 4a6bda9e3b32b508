//go:build integration

package request_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carelink/internal/referral/models"
	"carelink/internal/referral/store/request"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
	"carelink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *request.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = request.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "recommendations", "referrals")
	s.Require().NoError(err)
}

func validForm() models.ReferralForm {
	return models.ReferralForm{
		CoverInfo: models.CoverInfo{
			RequestDate:   models.RequestDate{Year: 2026, Month: 3, Day: 14},
			CenterName:    "마음돌봄센터",
			CounselorName: "김상담",
		},
		BasicInfo: models.BasicInfo{
			ChildInfo: models.ChildInfo{Name: "이아동", Age: 9},
			CareType:  models.CareTypeGeneral,
		},
		PsychologicalInfo: "또래 관계에서 위축된 모습",
		Consent:           models.ConsentInfo{DataProcessing: true},
	}
}

func newTestReferral(s *PostgresStoreSuite, childID id.ChildID, guardianID id.GuardianID) *models.Referral {
	now := time.Now().UTC().Truncate(time.Microsecond)
	r, err := models.New(id.NewReferralID(), childID, guardianID, validForm(), now)
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	r := newTestReferral(s, "child-1", "guardian-1")

	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, found.ID)
	s.Equal(models.StatusPending, found.Status)
	s.Equal("마음돌봄센터", found.CenterName)
	s.Equal(models.CareTypeGeneral, found.CareType)
	s.Equal(int64(1), found.Version)
	s.Equal(r.Form.CoverInfo.CounselorName, found.Form.CoverInfo.CounselorName)
	s.Equal(r.Form.PsychologicalInfo, found.Form.PsychologicalInfo)
}

func (s *PostgresStoreSuite) TestCreateDuplicateID() {
	ctx := context.Background()
	r := newTestReferral(s, "child-1", "guardian-1")

	s.Require().NoError(s.store.Create(ctx, r))
	err := s.store.Create(ctx, r)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateBumpsVersion() {
	ctx := context.Background()
	r := newTestReferral(s, "child-1", "guardian-1")
	s.Require().NoError(s.store.Create(ctx, r))

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(r.MarkRecommended(now))
	s.Require().NoError(s.store.Update(ctx, r))
	s.Equal(int64(2), r.Version)

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRecommended, found.Status)
	s.Equal(int64(2), found.Version)
}

func (s *PostgresStoreSuite) TestStaleUpdateConflicts() {
	ctx := context.Background()
	r := newTestReferral(s, "child-1", "guardian-1")
	s.Require().NoError(s.store.Create(ctx, r))

	stale, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(r.MarkRecommended(now))
	s.Require().NoError(s.store.Update(ctx, r))

	s.Require().NoError(stale.MarkRecommended(now))
	err = s.store.Update(ctx, stale)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentTransitionsOneWins() {
	ctx := context.Background()
	r := newTestReferral(s, "child-1", "guardian-1")
	s.Require().NoError(s.store.Create(ctx, r))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			fresh, err := s.store.FindByID(ctx, r.ID)
			if err != nil {
				return
			}
			if err := fresh.MarkRecommended(time.Now().UTC()); err != nil {
				return
			}
			switch err := s.store.Update(ctx, fresh); {
			case err == nil:
				successCount.Add(1)
			default:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one transition should win")

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRecommended, found.Status)
	s.Equal(int64(2), found.Version)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.NewReferralID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := newTestReferral(s, "child-1", "guardian-1")
	err = s.store.Update(ctx, ghost)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByParticipants() {
	ctx := context.Background()

	r1 := newTestReferral(s, "child-1", "guardian-1")
	r2 := newTestReferral(s, "child-1", "guardian-2")
	r3 := newTestReferral(s, "child-2", "guardian-1")
	for _, r := range []*models.Referral{r1, r2, r3} {
		s.Require().NoError(s.store.Create(ctx, r))
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(r3.MatchWith("inst-1", "counselor-1", now))
	s.Require().NoError(s.store.Update(ctx, r3))

	byChild, err := s.store.FindByChild(ctx, "child-1")
	s.Require().NoError(err)
	s.Len(byChild, 2)

	byGuardian, err := s.store.FindByGuardian(ctx, "guardian-1")
	s.Require().NoError(err)
	s.Len(byGuardian, 2)

	byInstitution, err := s.store.FindByInstitution(ctx, "inst-1")
	s.Require().NoError(err)
	s.Require().Len(byInstitution, 1)
	s.Equal(r3.ID, byInstitution[0].ID)

	byCounselor, err := s.store.FindByCounselor(ctx, "counselor-1")
	s.Require().NoError(err)
	s.Require().Len(byCounselor, 1)
	s.Equal(r3.ID, byCounselor[0].ID)
}

func (s *PostgresStoreSuite) TestListFiltersAndPages() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := newTestReferral(s, "child-1", "guardian-1")
		s.Require().NoError(s.store.Create(ctx, r))
	}
	rejected := newTestReferral(s, "child-2", "guardian-2")
	s.Require().NoError(s.store.Create(ctx, rejected))
	s.Require().NoError(rejected.Reject("보호자 요청으로 철회", time.Now().UTC()))
	s.Require().NoError(s.store.Update(ctx, rejected))

	all, total, err := s.store.List(ctx, request.ListFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(6, total)
	s.Len(all, 6)

	pending, total, err := s.store.List(ctx, request.ListFilter{Status: models.StatusPending, Page: 1, Limit: 3})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Len(pending, 3)

	page2, total, err := s.store.List(ctx, request.ListFilter{Status: models.StatusPending, Page: 2, Limit: 3})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Len(page2, 2)
}

func (s *PostgresStoreSuite) TestGuardianCounters() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := newTestReferral(s, "child-1", "guardian-1")
		s.Require().NoError(s.store.Create(ctx, r))
	}
	other := newTestReferral(s, "child-2", "guardian-2")
	s.Require().NoError(s.store.Create(ctx, other))

	count, err := s.store.CountByGuardianAndStatus(ctx, "guardian-1", models.StatusPending)
	s.Require().NoError(err)
	s.Equal(3, count)

	recent, err := s.store.FindRecentByGuardian(ctx, "guardian-1", time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Len(recent, 3)

	none, err := s.store.FindRecentByGuardian(ctx, "guardian-1", time.Now().UTC().Add(time.Hour))
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestFormRoundTripsVerbatim() {
	ctx := context.Background()

	form := validForm()
	form.BasicInfo.ProtectedChild = map[string]any{"facilityType": "group_home", "admittedYear": float64(2024)}
	form.GovernmentForm = map[string]any{"formVersion": "2025-1"}
	score := 68.0
	form.TestResults = []models.TestResult{{TestName: "K-CBCL", Score: &score, Level: "caution"}}

	now := time.Now().UTC().Truncate(time.Microsecond)
	r, err := models.New(id.NewReferralID(), "child-1", "guardian-1", form, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(form.BasicInfo.ProtectedChild, found.Form.BasicInfo.ProtectedChild)
	s.Equal(form.GovernmentForm, found.Form.GovernmentForm)
	s.Require().Len(found.Form.TestResults, 1)
	s.Equal("K-CBCL", found.Form.TestResults[0].TestName)
}

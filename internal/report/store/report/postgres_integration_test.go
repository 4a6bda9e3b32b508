//go:build integration

package report_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carelink/internal/report/models"
	"carelink/internal/report/store/report"
	id "carelink/pkg/domain"
	"carelink/pkg/platform/sentinel"
	"carelink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *report.PostgresStore
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
	s.store = report.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "session_reports")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newReport(referralID id.ReferralID, session int) *models.SessionReport {
	now := time.Now().UTC().Truncate(time.Microsecond)
	r, err := models.New(models.NewParams{
		ID:             id.NewReportID(),
		ReferralID:     referralID,
		ChildID:        "child-1",
		CounselorID:    "counselor-1",
		InstitutionID:  "inst-1",
		SessionNumber:  session,
		ReportDate:     now,
		CenterName:     "마음돌봄센터",
		CounselReason:  "또래 관계 불안",
		CounselContent: "놀이치료를 통해 감정 표현을 연습함",
		AttachmentURLs: []string{"s3://reports/session-1.pdf"},
	}, now)
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	r := s.newReport("referral-1", 1)

	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, found.ID)
	s.Equal(models.StatusDraft, found.Status)
	s.Equal(1, found.SessionNumber)
	s.Equal(id.CounselorID("counselor-1"), found.CounselorID)
	s.Equal([]string{"s3://reports/session-1.pdf"}, found.AttachmentURLs)
	s.Nil(found.SubmittedAt)
	s.Equal(int64(1), found.Version)
}

func (s *PostgresStoreSuite) TestDuplicateSessionNumberConflicts() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-1", 1)))
	err := s.store.Create(ctx, s.newReport("referral-1", 1))
	s.ErrorIs(err, sentinel.ErrConflict)

	// Same session number under a different referral is fine.
	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-2", 1)))
}

func (s *PostgresStoreSuite) TestConcurrentSameSessionOneWins() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newReport("referral-1", 7))
			switch {
			case err == nil:
				successCount.Add(1)
			default:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should win the unique index")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestApprovalRoundTrip() {
	ctx := context.Background()
	r := s.newReport("referral-1", 1)
	s.Require().NoError(s.store.Create(ctx, r))

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(r.Submit(now))
	s.Require().NoError(s.store.Update(ctx, r))
	s.Require().NoError(r.MarkReviewed(now))
	s.Require().NoError(s.store.Update(ctx, r))
	s.Require().NoError(r.Approve("아이가 많이 밝아졌어요", now))
	s.Require().NoError(s.store.Update(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, found.Status)
	s.Equal("아이가 많이 밝아졌어요", found.GuardianFeedback)
	s.Require().NotNil(found.SubmittedAt)
	s.Require().NotNil(found.ReviewedAt)
	s.Equal(int64(4), found.Version)
}

func (s *PostgresStoreSuite) TestStaleUpdateConflicts() {
	ctx := context.Background()
	r := s.newReport("referral-1", 1)
	s.Require().NoError(s.store.Create(ctx, r))

	stale, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(r.Submit(now))
	s.Require().NoError(s.store.Update(ctx, r))

	s.Require().NoError(stale.Submit(now))
	err = s.store.Update(ctx, stale)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByReferralAndSession(ctx, "referral-1", 99)
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := s.newReport("referral-1", 1)
	err = s.store.Update(ctx, ghost)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSessionNumbering() {
	ctx := context.Background()

	next, err := s.store.NextSessionNumber(ctx, "referral-1")
	s.Require().NoError(err)
	s.Equal(1, next)

	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-1", 1)))
	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-1", 3)))

	next, err = s.store.NextSessionNumber(ctx, "referral-1")
	s.Require().NoError(err)
	s.Equal(4, next)

	count, err := s.store.CountByReferral(ctx, "referral-1")
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *PostgresStoreSuite) TestFindersAndList() {
	ctx := context.Background()

	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-1", 2)))
	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-1", 1)))
	s.Require().NoError(s.store.Create(ctx, s.newReport("referral-2", 1)))

	byReferral, err := s.store.FindByReferral(ctx, "referral-1")
	s.Require().NoError(err)
	s.Require().Len(byReferral, 2)
	s.Equal(1, byReferral[0].SessionNumber)
	s.Equal(2, byReferral[1].SessionNumber)

	byChild, err := s.store.FindByChild(ctx, "child-1")
	s.Require().NoError(err)
	s.Len(byChild, 3)

	byCounselor, err := s.store.FindByCounselor(ctx, "counselor-1")
	s.Require().NoError(err)
	s.Len(byCounselor, 3)

	drafts, total, err := s.store.List(ctx, report.ListFilter{Status: models.StatusDraft, Page: 1, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(drafts, 2)

	none, total, err := s.store.List(ctx, report.ListFilter{Status: models.StatusApproved, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(none)
}

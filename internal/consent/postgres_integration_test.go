//go:build integration

package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carelink/internal/consent"
	"carelink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *consent.PostgresStore
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
	s.store = consent.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "consents"))
}

func (s *PostgresStoreSuite) record(expiresAt time.Time) consent.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return consent.Record{
		ChildID:    "child-1",
		GuardianID: "guardian-1",
		Purpose:    consent.PurposeReferral,
		GrantedAt:  now,
		ExpiresAt:  expiresAt,
	}
}

func (s *PostgresStoreSuite) TestSaveAndListRoundTrip() {
	ctx := context.Background()
	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	s.Require().NoError(s.store.Save(ctx, s.record(expires)))

	records, err := s.store.ListByChild(ctx, "child-1")
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(consent.PurposeReferral, records[0].Purpose)
	s.True(records[0].ExpiresAt.Equal(expires))
	s.Nil(records[0].RevokedAt)
}

func (s *PostgresStoreSuite) TestZeroExpiryStaysZero() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.record(time.Time{})))

	records, err := s.store.ListByChild(ctx, "child-1")
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.True(records[0].ExpiresAt.IsZero(), "a consent granted without TTL must read back as never expiring")
}

func (s *PostgresStoreSuite) TestRevokeStampsMatchingPurpose() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.record(time.Time{})))

	other := s.record(time.Time{})
	other.Purpose = consent.PurposeReportGeneration
	s.Require().NoError(s.store.Save(ctx, other))

	revokedAt := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Revoke(ctx, "child-1", consent.PurposeReferral, revokedAt))

	records, err := s.store.ListByChild(ctx, "child-1")
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	for _, r := range records {
		if r.Purpose == consent.PurposeReferral {
			s.Require().NotNil(r.RevokedAt)
			s.True(r.RevokedAt.Equal(revokedAt))
		} else {
			s.Nil(r.RevokedAt, "revocation is purpose-bound and must not touch other purposes")
		}
	}
}

func (s *PostgresStoreSuite) TestRevokedConsentFailsRequire() {
	ctx := context.Background()
	svc := consent.NewService(s.store)

	_, err := svc.Grant(ctx, "child-1", "guardian-1", consent.PurposeReferral, 0)
	s.Require().NoError(err)
	s.Require().NoError(svc.Require(ctx, "child-1", string(consent.PurposeReferral), time.Now()))

	s.Require().NoError(svc.Revoke(ctx, "child-1", consent.PurposeReferral))
	err = svc.Require(ctx, "child-1", string(consent.PurposeReferral), time.Now().Add(time.Minute))
	s.Error(err)
}

func (s *PostgresStoreSuite) TestListScopedByChild() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.record(time.Time{})))

	records, err := s.store.ListByChild(ctx, "child-9")
	s.Require().NoError(err)
	s.Empty(records)
}

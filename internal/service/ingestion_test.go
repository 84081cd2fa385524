package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type IngestionServiceSuite struct {
	testutil.BaseServiceTestSuite
	ingestion IngestionService
	teams     TeamService
}

func TestIngestionService(t *testing.T) {
	suite.Run(t, new(IngestionServiceSuite))
}

func (s *IngestionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.ingestion = NewIngestionService(params)
	s.teams = NewTeamService(params)
}

func (s *IngestionServiceSuite) seedTeam(appID string) string {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID:          appID,
		ExternalTeamID: "ext-" + appID,
		Name:           "Acme",
	})
	s.NoError(err)
	return result.Team.ID
}

func (s *IngestionServiceSuite) event(teamID, key string) IngestEventRequest {
	return IngestEventRequest{
		TeamID:         teamID,
		EventType:      "tokens.generated",
		Timestamp:      s.GetNow().Add(-time.Minute),
		IdempotencyKey: key,
		Payload:        types.Payload{"tokens": float64(100)},
		Source:         "sdk",
	}
}

func (s *IngestionServiceSuite) TestIngestAcceptsAndDeduplicates() {
	teamID := s.seedTeam("app_1")

	result, err := s.ingestion.IngestBatch(s.GetContext(), "app_1",
		[]IngestEventRequest{s.event(teamID, "k1")})
	s.NoError(err)
	s.Equal(1, result.Accepted)
	s.Equal(0, result.Duplicates)

	// Replaying the same idempotency key is a duplicate, not an error.
	result, err = s.ingestion.IngestBatch(s.GetContext(), "app_1",
		[]IngestEventRequest{s.event(teamID, "k1")})
	s.NoError(err)
	s.Equal(0, result.Accepted)
	s.Equal(1, result.Duplicates)
}

func (s *IngestionServiceSuite) TestMixedBatchCountsBoth() {
	teamID := s.seedTeam("app_1")

	_, err := s.ingestion.IngestBatch(s.GetContext(), "app_1",
		[]IngestEventRequest{s.event(teamID, "k1")})
	s.NoError(err)

	result, err := s.ingestion.IngestBatch(s.GetContext(), "app_1",
		[]IngestEventRequest{s.event(teamID, "k1"), s.event(teamID, "k2")})
	s.NoError(err)
	s.Equal(1, result.Accepted)
	s.Equal(1, result.Duplicates)
}

func (s *IngestionServiceSuite) TestSameKeyDifferentAppsBothAccepted() {
	team1 := s.seedTeam("app_1")
	team2 := s.seedTeam("app_2")

	r1, err := s.ingestion.IngestBatch(s.GetContext(), "app_1", []IngestEventRequest{s.event(team1, "shared")})
	s.NoError(err)
	s.Equal(1, r1.Accepted)

	// Deduplication is scoped per app.
	r2, err := s.ingestion.IngestBatch(s.GetContext(), "app_2", []IngestEventRequest{s.event(team2, "shared")})
	s.NoError(err)
	s.Equal(1, r2.Accepted)
}

func (s *IngestionServiceSuite) TestEmptyBatchRejected() {
	_, err := s.ingestion.IngestBatch(s.GetContext(), "app_1", nil)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *IngestionServiceSuite) TestOversizedBatchRejected() {
	teamID := s.seedTeam("app_1")

	batch := make([]IngestEventRequest, s.GetConfig().Usage.MaxBatchSize+1)
	for i := range batch {
		batch[i] = s.event(teamID, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT))
	}
	_, err := s.ingestion.IngestBatch(s.GetContext(), "app_1", batch)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *IngestionServiceSuite) TestForeignTeamRejected() {
	teamID := s.seedTeam("app_1")

	_, err := s.ingestion.IngestBatch(s.GetContext(), "app_2",
		[]IngestEventRequest{s.event(teamID, "k1")})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *IngestionServiceSuite) TestEventCarriesBillTo() {
	teamID := s.seedTeam("app_1")
	t, err := s.teams.GetTeam(s.GetContext(), "app_1", teamID)
	s.NoError(err)

	_, err = s.ingestion.IngestBatch(s.GetContext(), "app_1",
		[]IngestEventRequest{s.event(teamID, "k1")})
	s.NoError(err)

	stored, err := s.GetStores().EventRepo.ListByBillTo(
		s.GetContext(), "app_1", t.BillToID, s.GetNow().Add(-time.Hour), s.GetNow())
	s.NoError(err)
	s.Len(stored, 1)
	s.Equal(t.BillToID, stored[0].BillToID)
	s.Nil(stored[0].PricedAt)
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type TeamServiceSuite struct {
	testutil.BaseServiceTestSuite
	teams TeamService
}

func TestTeamService(t *testing.T) {
	suite.Run(t, new(TeamServiceSuite))
}

func (s *TeamServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.teams = NewTeamService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *TeamServiceSuite) TestCreateTeamAppliesDefaults() {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID:          "app_1",
		ExternalTeamID: "ws-42",
		Name:           "Acme",
	})
	s.NoError(err)
	s.True(result.Created)
	s.Equal(types.TeamKindStandard, result.Team.Kind)
	s.Equal(types.BillingModeSubscription, result.Team.BillingMode)
	s.Equal("usd", result.Team.DefaultCurrency)
	s.NotEmpty(result.Team.BillToID)
}

func (s *TeamServiceSuite) TestCreateTeamIsIdempotent() {
	first, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID:          "app_1",
		ExternalTeamID: "ws-42",
		Name:           "Acme",
	})
	s.NoError(err)
	s.True(first.Created)

	// Same external id returns the existing team, even under a
	// different display name.
	second, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID:          "app_1",
		ExternalTeamID: "ws-42",
		Name:           "Acme Renamed",
	})
	s.NoError(err)
	s.False(second.Created)
	s.Equal(first.Team.ID, second.Team.ID)
	s.Equal(first.Team.BillToID, second.Team.BillToID)
}

func (s *TeamServiceSuite) TestSameExternalIDAcrossAppsIsDistinct() {
	first, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_1", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)
	second, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_2", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)
	s.True(second.Created)
	s.NotEqual(first.Team.ID, second.Team.ID)
}

func (s *TeamServiceSuite) TestGetTeamEnforcesAppScope() {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_1", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)

	_, err = s.teams.GetTeam(s.GetContext(), "app_2", result.Team.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *TeamServiceSuite) TestSoftRemoveMemberPreservesHistory() {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_1", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)
	teamID := result.Team.ID

	s.NoError(s.GetStores().TeamRepo.UpsertMember(s.GetContext(), &team.Member{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM_MEMBER),
		TeamID:    teamID,
		UserID:    "user_1",
		Role:      types.MemberRoleMember,
		Status:    types.MemberStatusActive,
		StartedAt: s.GetNow(),
	}))

	removed, err := s.teams.SoftRemoveMember(s.GetContext(), "app_1", teamID, "user_1")
	s.NoError(err)
	s.Equal(types.MemberStatusRemoved, removed.Status)
	s.NotNil(removed.EndedAt)
	firstEnd := *removed.EndedAt

	// Removing again is a no-op returning the unchanged record.
	s.AdvanceClock(time.Second)
	again, err := s.teams.SoftRemoveMember(s.GetContext(), "app_1", teamID, "user_1")
	s.NoError(err)
	s.Equal(types.MemberStatusRemoved, again.Status)
	s.Equal(firstEnd, *again.EndedAt)
}

func (s *TeamServiceSuite) TestRemoveUnknownMemberFails() {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_1", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)

	_, err = s.teams.SoftRemoveMember(s.GetContext(), "app_1", result.Team.ID, "ghost")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *TeamServiceSuite) TestWalletConfigRoundTrip() {
	result, err := s.teams.CreateTeam(s.GetContext(), CreateTeamRequest{
		AppID: "app_1", ExternalTeamID: "ws-42", Name: "Acme",
	})
	s.NoError(err)
	teamID := result.Team.ID

	_, err = s.teams.GetWalletConfig(s.GetContext(), "app_1", teamID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	cfg := &team.WalletConfig{
		AppID:            "app_1",
		TeamID:           teamID,
		AutoTopUpEnabled: true,
		ThresholdMinor:   500,
		TopUpAmountMinor: 2000,
	}
	s.NoError(s.teams.UpsertWalletConfig(s.GetContext(), cfg))

	got, err := s.teams.GetWalletConfig(s.GetContext(), "app_1", teamID)
	s.NoError(err)
	s.True(got.AutoTopUpEnabled)
	s.Equal(int64(500), got.ThresholdMinor)
	s.Equal(int64(2000), got.TopUpAmountMinor)

	// Upsert replaces in place.
	cfg.AutoTopUpEnabled = false
	s.NoError(s.teams.UpsertWalletConfig(s.GetContext(), cfg))
	got, err = s.teams.GetWalletConfig(s.GetContext(), "app_1", teamID)
	s.NoError(err)
	s.False(got.AutoTopUpEnabled)
}

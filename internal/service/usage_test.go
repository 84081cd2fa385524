package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/lineitem"
	"github.com/meterline/meterline/internal/domain/pricebook"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type UsageQueryServiceSuite struct {
	testutil.BaseServiceTestSuite
	usage UsageQueryService

	team         *team.Team
	customerBook *pricebook.PriceBook
	cogsBook     *pricebook.PriceBook
}

func TestUsageQueryService(t *testing.T) {
	suite.Run(t, new(UsageQueryServiceSuite))
}

func (s *UsageQueryServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.usage = NewUsageQueryService(newTestParams(&s.BaseServiceTestSuite))

	s.team = &team.Team{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		AppID:           "app_1",
		Name:            "Acme",
		Kind:            types.TeamKindStandard,
		DefaultCurrency: "usd",
		BillingMode:     types.BillingModeWallet,
		BillToID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ENTITY),
		BaseModel:       types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().TeamRepo.Create(s.GetContext(), s.team, "ext-1"))

	s.customerBook = s.seedBook(types.PriceBookKindCustomer)
	s.cogsBook = s.seedBook(types.PriceBookKindCOGS)
}

func (s *UsageQueryServiceSuite) seedBook(kind types.PriceBookKind) *pricebook.PriceBook {
	book := &pricebook.PriceBook{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE_BOOK),
		AppID:         "app_1",
		Kind:          kind,
		Currency:      "usd",
		EffectiveFrom: s.GetNow().AddDate(0, -1, 0),
		BaseModel:     types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().PriceBookRepo.CreateBook(s.GetContext(), book))
	return book
}

func (s *UsageQueryServiceSuite) seedItem(appID, bookID, eventType string, amount int64, at time.Time) {
	item := &lineitem.BillableLineItem{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
		AppID:       appID,
		BillToID:    s.team.BillToID,
		TeamID:      s.team.ID,
		Timestamp:   at,
		PriceBookID: bookID,
		PriceRuleID: "pr_1",
		AmountMinor: amount,
		Currency:    "usd",
		InputsSnapshot: types.Payload{
			"eventType":   eventType,
			"amountMinor": amount,
		},
		CreatedAt: s.GetNow(),
	}
	s.NoError(s.GetStores().LineItemRepo.Create(s.GetContext(), item))
}

func (s *UsageQueryServiceSuite) TestQueryUsageGroupsByEventTypeByDefault() {
	at := s.GetNow().Add(-time.Hour)
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 300, at)
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 200, at)
	s.seedItem("app_1", s.customerBook.ID, "reports.exported", 50, at)
	// COGS items never leak into the customer view.
	s.seedItem("app_1", s.cogsBook.ID, "tokens.generated", 999, at)

	buckets, err := s.usage.QueryUsage(s.GetContext(), s.team.ID,
		s.GetNow().AddDate(0, 0, -1), s.GetNow(), "")
	s.NoError(err)
	s.Require().Len(buckets, 2)
	s.Equal("reports.exported", buckets[0].Key)
	s.Equal(int64(50), buckets[0].AmountMinor)
	s.Equal("tokens.generated", buckets[1].Key)
	s.Equal(int64(500), buckets[1].AmountMinor)
	s.Equal(int64(2), buckets[1].Count)
}

func (s *UsageQueryServiceSuite) TestQueryUsageGroupsByApp() {
	at := s.GetNow().Add(-time.Hour)
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 300, at)
	s.seedItem("app_2", s.customerBook.ID, "tokens.generated", 200, at)

	buckets, err := s.usage.QueryUsage(s.GetContext(), s.team.ID,
		s.GetNow().AddDate(0, 0, -1), s.GetNow(), UsageGroupByApp)
	s.NoError(err)
	s.Require().Len(buckets, 2)
	s.Equal("app_1", buckets[0].Key)
	s.Equal("app_2", buckets[1].Key)
}

func (s *UsageQueryServiceSuite) TestQueryUsageRejectsUnknownGroupBy() {
	_, err := s.usage.QueryUsage(s.GetContext(), s.team.ID,
		s.GetNow().AddDate(0, 0, -1), s.GetNow(), UsageGroupBy("bogus"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *UsageQueryServiceSuite) TestQueryUsageHonorsTimeWindow() {
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 300, s.GetNow().AddDate(0, 0, -10))
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 200, s.GetNow().Add(-time.Hour))

	buckets, err := s.usage.QueryUsage(s.GetContext(), s.team.ID,
		s.GetNow().AddDate(0, 0, -1), s.GetNow(), "")
	s.NoError(err)
	s.Require().Len(buckets, 1)
	s.Equal(int64(200), buckets[0].AmountMinor)
}

func (s *UsageQueryServiceSuite) TestQueryCOGSSeesOnlyCostItems() {
	at := s.GetNow().Add(-time.Hour)
	s.seedItem("app_1", s.customerBook.ID, "tokens.generated", 300, at)
	s.seedItem("app_1", s.cogsBook.ID, "tokens.generated", 100, at)

	buckets, err := s.usage.QueryCOGS(s.GetContext(), s.team.ID,
		s.GetNow().AddDate(0, 0, -1), s.GetNow())
	s.NoError(err)
	s.Require().Len(buckets, 1)
	s.Equal(int64(100), buckets[0].AmountMinor)
}

func (s *UsageQueryServiceSuite) TestQueryUsageForUnknownTeamFails() {
	_, err := s.usage.QueryUsage(s.GetContext(), "team_missing",
		s.GetNow().AddDate(0, 0, -1), s.GetNow(), "")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

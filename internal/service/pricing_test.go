package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/pricebook"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type PricingServiceSuite struct {
	testutil.BaseServiceTestSuite
	pricing PricingService
}

func TestPricingService(t *testing.T) {
	suite.Run(t, new(PricingServiceSuite))
}

func (s *PricingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.pricing = NewPricingService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *PricingServiceSuite) seedBook(appID string, kind types.PriceBookKind, effectiveFrom time.Time) *pricebook.PriceBook {
	book := &pricebook.PriceBook{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE_BOOK),
		AppID:         appID,
		Kind:          kind,
		Currency:      "usd",
		EffectiveFrom: effectiveFrom,
		BaseModel:     types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().PriceBookRepo.CreateBook(s.GetContext(), book))
	return book
}

func (s *PricingServiceSuite) seedRule(bookID string, priority int, match, rule types.Payload) *pricebook.Rule {
	r := &pricebook.Rule{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE_RULE),
		PriceBookID: bookID,
		Priority:    priority,
		Match:       match,
		Rule:        rule,
		CreatedAt:   s.GetNow(),
	}
	s.NoError(s.GetStores().PriceBookRepo.CreateRule(s.GetContext(), r))
	return r
}

func (s *PricingServiceSuite) newEvent(appID, eventType string, payload types.Payload) *events.UsageEvent {
	return &events.UsageEvent{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT),
		AppID:          appID,
		BillToID:       "bt_test",
		EventType:      eventType,
		Timestamp:      s.GetNow(),
		IdempotencyKey: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT),
		Payload:        payload,
		BaseModel:      types.GetDefaultBaseModel(s.GetNow()),
	}
}

func (s *PricingServiceSuite) TestPerUnitPricesBothBooks() {
	appID := "app_1"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	customer := s.seedBook(appID, types.PriceBookKindCustomer, s.GetNow().AddDate(0, -1, 0))

	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "tokens.generated"},
		types.Payload{"type": "per_unit", "field": "tokens", "unitPrice": 0.1})
	s.seedRule(customer.ID, 0,
		types.Payload{"eventType": "tokens.generated"},
		types.Payload{"type": "per_unit", "field": "tokens", "unitPrice": 0.3})

	event := s.newEvent(appID, "tokens.generated", types.Payload{"tokens": float64(10000)})
	drafts, err := s.pricing.PriceEvent(s.GetContext(), event)
	s.NoError(err)
	s.Len(drafts, 2)

	s.Equal(types.PriceBookKindCOGS, drafts[0].PriceBookKind)
	s.Equal(int64(1000), drafts[0].AmountMinor)
	s.Equal(types.PriceBookKindCustomer, drafts[1].PriceBookKind)
	s.Equal(int64(3000), drafts[1].AmountMinor)
	s.Equal("usd", drafts[1].Currency)
	s.Equal("tokens.generated", drafts[1].InputsSnapshot["eventType"])
	s.Equal(int64(3000), drafts[1].InputsSnapshot["amountMinor"])
}

func (s *PricingServiceSuite) TestPerUnitRoundsFractionsUp() {
	appID := "app_round"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "per_unit", "field": "count", "unitPrice": 0.5})

	event := s.newEvent(appID, "calls", types.Payload{"count": float64(3)})
	drafts, err := s.pricing.PriceEvent(s.GetContext(), event)
	s.NoError(err)
	s.Len(drafts, 1)
	s.Equal(int64(2), drafts[0].AmountMinor)
}

func (s *PricingServiceSuite) TestFlatRule() {
	appID := "app_flat"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "report.exported"},
		types.Payload{"type": "flat", "amount": float64(250)})

	event := s.newEvent(appID, "report.exported", types.Payload{})
	drafts, err := s.pricing.PriceEvent(s.GetContext(), event)
	s.NoError(err)
	s.Len(drafts, 1)
	s.Equal(int64(250), drafts[0].AmountMinor)
}

func (s *PricingServiceSuite) TestTieredRulePricesPiecewise() {
	appID := "app_tiered"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "minutes"},
		types.Payload{
			"type":  "tiered",
			"field": "minutes",
			"tiers": []interface{}{
				map[string]interface{}{"upTo": float64(100), "unitPrice": float64(1)},
				map[string]interface{}{"upTo": float64(200), "unitPrice": 0.5},
				map[string]interface{}{"unitPrice": 0.25},
			},
		})

	// 100*1 + 100*0.5 + 50*0.25 = 162.5, rounded up to 163.
	event := s.newEvent(appID, "minutes", types.Payload{"minutes": float64(250)})
	drafts, err := s.pricing.PriceEvent(s.GetContext(), event)
	s.NoError(err)
	s.Len(drafts, 1)
	s.Equal(int64(163), drafts[0].AmountMinor)
}

func (s *PricingServiceSuite) TestCustomerBookIsOptional() {
	appID := "app_cogs_only"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "flat", "amount": float64(5)})

	drafts, err := s.pricing.PriceEvent(s.GetContext(), s.newEvent(appID, "calls", types.Payload{}))
	s.NoError(err)
	s.Len(drafts, 1)
	s.Equal(types.PriceBookKindCOGS, drafts[0].PriceBookKind)
}

func (s *PricingServiceSuite) TestMissingCOGSBookIsPermanent() {
	event := s.newEvent("app_nobooks", "calls", types.Payload{})
	_, err := s.pricing.PriceEvent(s.GetContext(), event)
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrNoPriceBook))
	s.True(ierr.IsPermanentPricingFailure(err))
}

func (s *PricingServiceSuite) TestNoMatchingRuleIsPermanent() {
	appID := "app_nomatch"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "something.else"},
		types.Payload{"type": "flat", "amount": float64(5)})

	_, err := s.pricing.PriceEvent(s.GetContext(), s.newEvent(appID, "calls", types.Payload{}))
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrNoMatchingRule))
	s.True(ierr.IsPermanentPricingFailure(err))
}

func (s *PricingServiceSuite) TestInvalidRuleShapeIsPermanent() {
	appID := "app_badrule"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "per_unit", "field": "count"})

	_, err := s.pricing.PriceEvent(s.GetContext(), s.newEvent(appID, "calls", types.Payload{"count": float64(1)}))
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrInvalidRule))
	s.True(ierr.IsPermanentPricingFailure(err))
}

func (s *PricingServiceSuite) TestHigherPriorityRuleWins() {
	appID := "app_priority"
	cogs := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -1, 0))
	s.seedRule(cogs.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "flat", "amount": float64(10)})
	s.seedRule(cogs.ID, 10,
		types.Payload{"eventType": "calls", "model": "large"},
		types.Payload{"type": "flat", "amount": float64(100)})

	drafts, err := s.pricing.PriceEvent(s.GetContext(),
		s.newEvent(appID, "calls", types.Payload{"model": "large"}))
	s.NoError(err)
	s.Equal(int64(100), drafts[0].AmountMinor)

	// Without the payload field, only the catch-all matches.
	drafts, err = s.pricing.PriceEvent(s.GetContext(),
		s.newEvent(appID, "calls", types.Payload{"model": "small"}))
	s.NoError(err)
	s.Equal(int64(10), drafts[0].AmountMinor)
}

func (s *PricingServiceSuite) TestBookEffectiveAtEventTimestamp() {
	appID := "app_versions"
	old := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, -2, 0))
	s.seedRule(old.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "flat", "amount": float64(10)})

	// A newer book effective after the event timestamp must not apply.
	future := s.seedBook(appID, types.PriceBookKindCOGS, s.GetNow().AddDate(0, 1, 0))
	s.seedRule(future.ID, 0,
		types.Payload{"eventType": "calls"},
		types.Payload{"type": "flat", "amount": float64(999)})

	drafts, err := s.pricing.PriceEvent(s.GetContext(), s.newEvent(appID, "calls", types.Payload{}))
	s.NoError(err)
	s.Equal(int64(10), drafts[0].AmountMinor)
	s.Equal(old.ID, drafts[0].PriceBookID)
}

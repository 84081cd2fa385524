package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/pricebook"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// LineItemDraft is the pricing engine's output for one price book:
// everything a billable line item needs except its identity.
type LineItemDraft struct {
	PriceBookID    string
	PriceBookKind  types.PriceBookKind
	PriceRuleID    string
	AmountMinor    int64
	Currency       string
	Description    string
	InputsSnapshot types.Payload
}

// PricingService prices a single usage event against the COGS and
// CUSTOMER books effective at the event timestamp. It is deterministic:
// same event and same books always produce the same drafts.
//
// ErrNoPriceBook, ErrNoMatchingRule, and ErrInvalidRule are permanent;
// the worker flags the event and never retries. Everything else is
// transient.
type PricingService interface {
	PriceEvent(ctx context.Context, event *events.UsageEvent) ([]LineItemDraft, error)
}

type pricingService struct {
	ServiceParams
}

func NewPricingService(params ServiceParams) PricingService {
	return &pricingService{ServiceParams: params}
}

func (s *pricingService) PriceEvent(ctx context.Context, event *events.UsageEvent) ([]LineItemDraft, error) {
	drafts := make([]LineItemDraft, 0, 2)

	// COGS is always required.
	cogsDraft, err := s.priceAgainstBook(ctx, event, types.PriceBookKindCOGS, true)
	if err != nil {
		return nil, err
	}
	drafts = append(drafts, *cogsDraft)

	// CUSTOMER is optional: an app with no customer book at all prices
	// cost only.
	customerDraft, err := s.priceAgainstBook(ctx, event, types.PriceBookKindCustomer, false)
	if err != nil {
		return nil, err
	}
	if customerDraft != nil {
		drafts = append(drafts, *customerDraft)
	}

	return drafts, nil
}

func (s *pricingService) priceAgainstBook(ctx context.Context, event *events.UsageEvent, kind types.PriceBookKind, required bool) (*LineItemDraft, error) {
	book, err := s.PriceBookRepo.GetLatestBook(ctx, event.AppID, kind, event.Timestamp)
	if err != nil {
		if ierr.IsNotFound(err) {
			if !required {
				return nil, nil
			}
			return nil, ierr.NewError("no price book").
				WithHintf("No %s price book effective for app %s at %s", kind, event.AppID, event.Timestamp.Format("2006-01-02")).
				Mark(ierr.ErrNoPriceBook)
		}
		return nil, err
	}

	rules, err := s.PriceBookRepo.ListRules(ctx, book.ID)
	if err != nil {
		return nil, err
	}

	rule := matchRule(rules, event)
	if rule == nil {
		return nil, ierr.NewError("no matching rule").
			WithHintf("No rule in %s book %s matches event type %s", kind, book.ID, event.EventType).
			WithReportableDetails(map[string]any{
				"price_book_id": book.ID,
				"event_type":    event.EventType,
			}).
			Mark(ierr.ErrNoMatchingRule)
	}

	amount, inputs, err := evaluateRule(rule, event)
	if err != nil {
		return nil, err
	}

	return &LineItemDraft{
		PriceBookID:   book.ID,
		PriceBookKind: book.Kind,
		PriceRuleID:   rule.ID,
		AmountMinor:   amount,
		Currency:      book.Currency,
		Description:   fmt.Sprintf("%s (%s)", event.EventType, kind),
		InputsSnapshot: types.Payload{
			"eventType":   event.EventType,
			"priceRuleId": rule.ID,
			"inputs":      inputs,
			"amountMinor": amount,
		},
	}, nil
}

// matchRule returns the first rule whose match predicate holds. Rules
// arrive ordered by priority descending, then created_at ascending.
func matchRule(rules []*pricebook.Rule, event *events.UsageEvent) *pricebook.Rule {
	for _, rule := range rules {
		if ruleMatches(rule.Match, event) {
			return rule
		}
	}
	return nil
}

// ruleMatches evaluates a conjunction of scalar equality checks.
// "eventType" matches against the event's type; every other key
// matches against a payload field.
func ruleMatches(match types.Payload, event *events.UsageEvent) bool {
	for field, want := range match {
		var got interface{}
		if field == "eventType" {
			got = event.EventType
		} else {
			var ok bool
			got, ok = event.Payload[field]
			if !ok {
				return false
			}
		}
		if !scalarEqual(want, got) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b interface{}) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// evaluateRule computes the signed minor amount for the matched rule.
// Fractional per-unit results round toward positive infinity so
// fractional usage is never given away.
func evaluateRule(rule *pricebook.Rule, event *events.UsageEvent) (int64, types.Payload, error) {
	shape, _ := rule.Rule["type"].(string)

	switch types.PriceRuleType(shape) {
	case types.PriceRuleFlat:
		amount, ok := rule.Rule.Number("amount")
		if !ok {
			return 0, nil, invalidRule(rule, "flat rule requires a numeric amount")
		}
		return int64(amount), types.Payload{}, nil

	case types.PriceRulePerUnit:
		field, _ := rule.Rule["field"].(string)
		unitPrice, okPrice := rule.Rule.Number("unitPrice")
		if field == "" || !okPrice {
			return 0, nil, invalidRule(rule, "per_unit rule requires field and unitPrice")
		}
		quantity, ok := event.Payload.Number(field)
		if !ok {
			return 0, nil, invalidRule(rule, fmt.Sprintf("payload field %s is not numeric", field))
		}
		amount := decimal.NewFromFloat(quantity).
			Mul(decimal.NewFromFloat(unitPrice)).
			Ceil().
			IntPart()
		return amount, types.Payload{"field": field, "quantity": quantity, "unitPrice": unitPrice}, nil

	case types.PriceRuleTiered:
		return evaluateTiered(rule, event)

	default:
		return 0, nil, invalidRule(rule, fmt.Sprintf("unknown rule type %q", shape))
	}
}

// evaluateTiered prices piecewise: each tier covers units above the
// previous tier's upTo, up to its own. A nil upTo on the last tier is
// unbounded.
func evaluateTiered(rule *pricebook.Rule, event *events.UsageEvent) (int64, types.Payload, error) {
	field, _ := rule.Rule["field"].(string)
	rawTiers, ok := rule.Rule["tiers"].([]interface{})
	if field == "" || !ok || len(rawTiers) == 0 {
		return 0, nil, invalidRule(rule, "tiered rule requires field and tiers")
	}
	quantity, ok := event.Payload.Number(field)
	if !ok {
		return 0, nil, invalidRule(rule, fmt.Sprintf("payload field %s is not numeric", field))
	}

	total := decimal.Zero
	remaining := decimal.NewFromFloat(quantity)
	prevUpTo := decimal.Zero

	for i, raw := range rawTiers {
		tier, ok := raw.(map[string]interface{})
		if !ok {
			return 0, nil, invalidRule(rule, "tier entries must be objects")
		}
		unitPrice, okPrice := types.Payload(tier).Number("unitPrice")
		if !okPrice {
			return 0, nil, invalidRule(rule, "tier requires a numeric unitPrice")
		}

		var width decimal.Decimal
		upToVal, hasUpTo := tier["upTo"]
		if !hasUpTo || upToVal == nil {
			if i != len(rawTiers)-1 {
				return 0, nil, invalidRule(rule, "only the last tier may be unbounded")
			}
			width = remaining
		} else {
			upTo, okUpTo := types.Payload(tier).Number("upTo")
			if !okUpTo {
				return 0, nil, invalidRule(rule, "tier upTo must be numeric")
			}
			width = decimal.NewFromFloat(upTo).Sub(prevUpTo)
			prevUpTo = decimal.NewFromFloat(upTo)
		}

		units := decimal.Min(remaining, width)
		if units.IsNegative() {
			units = decimal.Zero
		}
		total = total.Add(units.Mul(decimal.NewFromFloat(unitPrice)))
		remaining = remaining.Sub(units)
		if !remaining.IsPositive() {
			break
		}
	}

	return total.Ceil().IntPart(), types.Payload{"field": field, "quantity": quantity}, nil
}

func invalidRule(rule *pricebook.Rule, reason string) error {
	return ierr.NewError("invalid rule").
		WithHintf("Price rule %s is invalid: %s", rule.ID, reason).
		WithReportableDetails(map[string]any{
			"price_rule_id": rule.ID,
			"reason":        reason,
		}).
		Mark(ierr.ErrInvalidRule)
}

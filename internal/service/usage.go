package service

import (
	"context"
	"sort"
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// UsageGroupBy selects the aggregation dimension for usage queries
type UsageGroupBy string

const (
	UsageGroupByApp       UsageGroupBy = "app"
	UsageGroupByEventType UsageGroupBy = "eventType"
)

// UsageBucket is one aggregated row of a usage or COGS query
type UsageBucket struct {
	Key         string `json:"key"`
	AmountMinor int64  `json:"amount_minor"`
	Count       int64  `json:"count"`
}

// UsageQueryService serves read-side aggregations over billable line
// items: customer-facing usage and operator COGS.
type UsageQueryService interface {
	QueryUsage(ctx context.Context, teamID string, from, to time.Time, groupBy UsageGroupBy) ([]*UsageBucket, error)
	QueryCOGS(ctx context.Context, teamID string, from, to time.Time) ([]*UsageBucket, error)
}

type usageQueryService struct {
	ServiceParams
}

func NewUsageQueryService(params ServiceParams) UsageQueryService {
	return &usageQueryService{ServiceParams: params}
}

func (s *usageQueryService) QueryUsage(ctx context.Context, teamID string, from, to time.Time, groupBy UsageGroupBy) ([]*UsageBucket, error) {
	if groupBy == "" {
		groupBy = UsageGroupByEventType
	}
	if groupBy != UsageGroupByApp && groupBy != UsageGroupByEventType {
		return nil, ierr.NewError("invalid groupBy").
			WithHintf("groupBy must be %q or %q", UsageGroupByApp, UsageGroupByEventType).
			Mark(ierr.ErrValidation)
	}
	return s.aggregate(ctx, teamID, from, to, types.PriceBookKindCustomer, groupBy)
}

func (s *usageQueryService) QueryCOGS(ctx context.Context, teamID string, from, to time.Time) ([]*UsageBucket, error) {
	return s.aggregate(ctx, teamID, from, to, types.PriceBookKindCOGS, UsageGroupByEventType)
}

func (s *usageQueryService) aggregate(ctx context.Context, teamID string, from, to time.Time, kind types.PriceBookKind, groupBy UsageGroupBy) ([]*UsageBucket, error) {
	t, err := s.TeamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	items, err := s.LineItemRepo.ListByBillTo(ctx, t.BillToID, from, to)
	if err != nil {
		return nil, err
	}

	bookKinds := map[string]types.PriceBookKind{}
	buckets := map[string]*UsageBucket{}
	for _, item := range items {
		itemKind, ok := bookKinds[item.PriceBookID]
		if !ok {
			book, err := s.PriceBookRepo.GetBook(ctx, item.PriceBookID)
			if err != nil {
				return nil, err
			}
			itemKind = book.Kind
			bookKinds[item.PriceBookID] = itemKind
		}
		if itemKind != kind {
			continue
		}

		key := item.AppID
		if groupBy == UsageGroupByEventType {
			key, _ = item.InputsSnapshot["eventType"].(string)
		}
		b, ok := buckets[key]
		if !ok {
			b = &UsageBucket{Key: key}
			buckets[key] = b
		}
		b.AmountMinor += item.AmountMinor
		b.Count++
	}

	out := make([]*UsageBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

package service

import (
	"github.com/meterline/meterline/internal/testutil"
)

// newTestParams wires ServiceParams against the suite's in-memory
// stores, fixed clock, and default config.
func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		Clock:            s.GetClock(),
		Cache:            s.GetCache(),
		AppRepo:          stores.AppRepo,
		ReplayRepo:       stores.ReplayRepo,
		TeamRepo:         stores.TeamRepo,
		CatalogRepo:      stores.CatalogRepo,
		SubscriptionRepo: stores.SubscriptionRepo,
		BundleRepo:       stores.BundleRepo,
		ContractRepo:     stores.ContractRepo,
		PriceBookRepo:    stores.PriceBookRepo,
		EventRepo:        stores.EventRepo,
		LineItemRepo:     stores.LineItemRepo,
		LedgerRepo:       stores.LedgerRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		AuditRepo:        stores.AuditRepo,
	}
}

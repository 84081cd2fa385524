package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type LedgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	ledger LedgerService
}

func TestLedgerService(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.ledger = NewLedgerService(newTestParams(&s.BaseServiceTestSuite))
}

func (s *LedgerServiceSuite) entryReq(key string, amount int64) CreateEntryRequest {
	return CreateEntryRequest{
		AppID:          "app_1",
		BillToID:       "bt_1",
		AccountType:    types.LedgerAccountWallet,
		Type:           types.LedgerEntryTopup,
		AmountMinor:    amount,
		Currency:       "usd",
		ReferenceType:  types.LedgerReferencePayment,
		ReferenceID:    "pi_1",
		IdempotencyKey: key,
	}
}

func (s *LedgerServiceSuite) TestCreateEntryPostsAndBalances() {
	entry, err := s.ledger.CreateEntry(s.GetContext(), s.entryReq("k1", 1000))
	s.NoError(err)
	s.NotEmpty(entry.ID)
	s.NotEmpty(entry.LedgerAccountID)

	balance, err := s.ledger.GetBalanceByType(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	s.Equal(int64(1000), balance)
}

func (s *LedgerServiceSuite) TestDuplicateIdempotencyKeyRejected() {
	_, err := s.ledger.CreateEntry(s.GetContext(), s.entryReq("k1", 1000))
	s.NoError(err)

	_, err = s.ledger.CreateEntry(s.GetContext(), s.entryReq("k1", 1000))
	s.Error(err)
	s.True(ierr.IsDuplicateLedgerEntry(err))

	// The replay leaves exactly one posting behind.
	balance, err := s.ledger.GetBalanceByType(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	s.Equal(int64(1000), balance)
}

func (s *LedgerServiceSuite) TestBalanceSumsSignedAmounts() {
	_, err := s.ledger.CreateEntry(s.GetContext(), s.entryReq("k1", 1000))
	s.NoError(err)

	debit := s.entryReq("k2", -300)
	debit.Type = types.LedgerEntryUsageCharge
	_, err = s.ledger.CreateEntry(s.GetContext(), debit)
	s.NoError(err)

	balance, err := s.ledger.GetBalanceByType(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	s.Equal(int64(700), balance)
}

func (s *LedgerServiceSuite) TestAccountsArePartitionedByType() {
	_, err := s.ledger.CreateEntry(s.GetContext(), s.entryReq("k1", 1000))
	s.NoError(err)

	ar := s.entryReq("k2", 400)
	ar.AccountType = types.LedgerAccountAccountsReceivable
	ar.Type = types.LedgerEntrySubscriptionCharge
	_, err = s.ledger.CreateEntry(s.GetContext(), ar)
	s.NoError(err)

	wallet, err := s.ledger.GetBalanceByType(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	s.Equal(int64(1000), wallet)

	receivable, err := s.ledger.GetBalanceByType(s.GetContext(), "app_1", "bt_1", types.LedgerAccountAccountsReceivable)
	s.NoError(err)
	s.Equal(int64(400), receivable)
}

func (s *LedgerServiceSuite) TestBalanceWithoutAccountIsZero() {
	balance, err := s.ledger.GetBalanceByType(s.GetContext(), "app_x", "bt_x", types.LedgerAccountWallet)
	s.NoError(err)
	s.Zero(balance)
}

func (s *LedgerServiceSuite) TestGetOrCreateAccountIsStable() {
	first, err := s.ledger.GetOrCreateAccount(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	second, err := s.ledger.GetOrCreateAccount(s.GetContext(), "app_1", "bt_1", types.LedgerAccountWallet)
	s.NoError(err)
	s.Equal(first.ID, second.ID)
}

func (s *LedgerServiceSuite) TestInvalidAccountTypeRejected() {
	_, err := s.ledger.GetOrCreateAccount(s.GetContext(), "app_1", "bt_1", types.LedgerAccountType("BOGUS"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *LedgerServiceSuite) TestListEntriesByReference() {
	req := s.entryReq("k1", 500)
	req.ReferenceType = types.LedgerReferenceInvoice
	req.ReferenceID = "inv_1"
	_, err := s.ledger.CreateEntry(s.GetContext(), req)
	s.NoError(err)

	entries, err := s.ledger.ListEntriesByReference(s.GetContext(), types.LedgerReferenceInvoice, "inv_1")
	s.NoError(err)
	s.Len(entries, 1)
	s.Equal("k1", entries[0].IdempotencyKey)
}

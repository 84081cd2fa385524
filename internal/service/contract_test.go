package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type ContractServiceSuite struct {
	testutil.BaseServiceTestSuite
	contracts ContractService
}

func TestContractService(t *testing.T) {
	suite.Run(t, new(ContractServiceSuite))
}

func (s *ContractServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.contracts = NewContractService(params, NewEntitlementService(params))
}

func (s *ContractServiceSuite) seedBundle(code string) string {
	b, err := s.contracts.CreateBundle(s.GetContext(), CreateBundleRequest{Code: code, Name: "Enterprise"})
	s.NoError(err)
	return b.ID
}

func (s *ContractServiceSuite) contractReq(bundleID, billToID string, status types.ContractStatus) CreateContractRequest {
	return CreateContractRequest{
		BillToID:      billToID,
		BundleID:      bundleID,
		Currency:      "usd",
		BillingPeriod: types.BillingPeriodMonthly,
		TermsDays:     30,
		PricingMode:   types.PricingModeFixed,
		StartsAt:      s.GetNow().AddDate(0, -1, 0),
		Status:        status,
		BaseFeeMinor:  10000,
	}
}

func (s *ContractServiceSuite) TestCreateBundleRejectsDuplicateCode() {
	s.seedBundle("ENT-1")
	_, err := s.contracts.CreateBundle(s.GetContext(), CreateBundleRequest{Code: "ENT-1", Name: "Other"})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *ContractServiceSuite) TestUpdateBundlePatchesNonNilFields() {
	id := s.seedBundle("ENT-1")

	name := "Enterprise Plus"
	updated, err := s.contracts.UpdateBundle(s.GetContext(), id, UpdateBundleRequest{Name: &name})
	s.NoError(err)
	s.Equal("Enterprise Plus", updated.Name)
	s.Equal(types.BundleStatusActive, updated.Status)

	status := types.BundleStatusArchived
	updated, err = s.contracts.UpdateBundle(s.GetContext(), id, UpdateBundleRequest{Status: &status})
	s.NoError(err)
	s.Equal("Enterprise Plus", updated.Name)
	s.Equal(types.BundleStatusArchived, updated.Status)
}

func (s *ContractServiceSuite) TestCreateContractDefaultsToDraft() {
	bundleID := s.seedBundle("ENT-1")

	c, err := s.contracts.CreateContract(s.GetContext(), s.contractReq(bundleID, "bt_1", ""))
	s.NoError(err)
	s.Equal(types.ContractStatusDraft, c.Status)
}

func (s *ContractServiceSuite) TestCreateContractRequiresBundle() {
	_, err := s.contracts.CreateContract(s.GetContext(), s.contractReq("bndl_missing", "bt_1", ""))
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *ContractServiceSuite) TestSingleActiveContractPerBillTo() {
	bundleID := s.seedBundle("ENT-1")

	_, err := s.contracts.CreateContract(s.GetContext(),
		s.contractReq(bundleID, "bt_1", types.ContractStatusActive))
	s.NoError(err)

	// A second ACTIVE contract for the same bill-to conflicts.
	_, err = s.contracts.CreateContract(s.GetContext(),
		s.contractReq(bundleID, "bt_1", types.ContractStatusActive))
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	// A draft is fine; activating it then conflicts too.
	draft, err := s.contracts.CreateContract(s.GetContext(),
		s.contractReq(bundleID, "bt_1", types.ContractStatusDraft))
	s.NoError(err)

	_, err = s.contracts.UpdateContractStatus(s.GetContext(), draft.ID, types.ContractStatusActive)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *ContractServiceSuite) TestEndingContractFreesTheActiveSlot() {
	bundleID := s.seedBundle("ENT-1")

	first, err := s.contracts.CreateContract(s.GetContext(),
		s.contractReq(bundleID, "bt_1", types.ContractStatusActive))
	s.NoError(err)

	_, err = s.contracts.UpdateContractStatus(s.GetContext(), first.ID, types.ContractStatusEnded)
	s.NoError(err)

	second, err := s.contracts.CreateContract(s.GetContext(),
		s.contractReq(bundleID, "bt_1", types.ContractStatusActive))
	s.NoError(err)
	s.Equal(types.ContractStatusActive, second.Status)
}

func (s *ContractServiceSuite) TestUpdateContractStatusValidatesTransition() {
	bundleID := s.seedBundle("ENT-1")
	c, err := s.contracts.CreateContract(s.GetContext(), s.contractReq(bundleID, "bt_1", ""))
	s.NoError(err)

	_, err = s.contracts.UpdateContractStatus(s.GetContext(), c.ID, types.ContractStatus("BOGUS"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *ContractServiceSuite) TestReplaceOverridesSwapsFullSet() {
	bundleID := s.seedBundle("ENT-1")
	c, err := s.contracts.CreateContract(s.GetContext(), s.contractReq(bundleID, "bt_1", ""))
	s.NoError(err)

	rows, err := s.contracts.ReplaceOverrides(s.GetContext(), c.ID, []OverrideRequest{
		{AppID: "app_1", MeterKey: "tokens.generated", Policy: included(1000)},
		{AppID: "app_1", MeterKey: "reports.exported", Policy: included(10)},
	})
	s.NoError(err)
	s.Len(rows, 2)

	rows, err = s.contracts.ReplaceOverrides(s.GetContext(), c.ID, []OverrideRequest{
		{AppID: "app_1", MeterKey: "tokens.generated", Policy: included(2000)},
	})
	s.NoError(err)
	s.Len(rows, 1)

	listed, err := s.contracts.ListOverrides(s.GetContext(), c.ID)
	s.NoError(err)
	s.Len(listed, 1)
	s.Equal(int64(2000), listed[0].Included())

	// An empty list clears every override.
	rows, err = s.contracts.ReplaceOverrides(s.GetContext(), c.ID, nil)
	s.NoError(err)
	s.Empty(rows)

	listed, err = s.contracts.ListOverrides(s.GetContext(), c.ID)
	s.NoError(err)
	s.Empty(listed)
}

func (s *ContractServiceSuite) TestReplaceOverridesValidatesPolicies() {
	bundleID := s.seedBundle("ENT-1")
	c, err := s.contracts.CreateContract(s.GetContext(), s.contractReq(bundleID, "bt_1", ""))
	s.NoError(err)

	// INCLUDED without an amount is invalid.
	bad := types.MeterPolicy{
		LimitType:      types.LimitTypeIncluded,
		Enforcement:    types.EnforcementSoft,
		OverageBilling: types.OverageBillingPerUnit,
	}
	_, err = s.contracts.ReplaceOverrides(s.GetContext(), c.ID, []OverrideRequest{
		{AppID: "app_1", MeterKey: "tokens.generated", Policy: bad},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

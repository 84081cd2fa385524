package types

import (
	"fmt"

	"github.com/samber/lo"
)

// TeamKind distinguishes shared workspaces from personal ones
type TeamKind string

const (
	TeamKindStandard TeamKind = "STANDARD"
	TeamKindPersonal TeamKind = "PERSONAL"
)

func (k TeamKind) String() string {
	return string(k)
}

func (k TeamKind) Validate() error {
	allowed := []TeamKind{
		TeamKindStandard,
		TeamKindPersonal,
	}
	if !lo.Contains(allowed, k) {
		return fmt.Errorf("invalid team kind: %s", k)
	}
	return nil
}

// BillingMode determines how a team's usage charges are settled
type BillingMode string

const (
	BillingModeSubscription       BillingMode = "SUBSCRIPTION"
	BillingModeWallet             BillingMode = "WALLET"
	BillingModeHybrid             BillingMode = "HYBRID"
	BillingModeEnterpriseContract BillingMode = "ENTERPRISE_CONTRACT"
)

func (m BillingMode) String() string {
	return string(m)
}

func (m BillingMode) Validate() error {
	allowed := []BillingMode{
		BillingModeSubscription,
		BillingModeWallet,
		BillingModeHybrid,
		BillingModeEnterpriseContract,
	}
	if !lo.Contains(allowed, m) {
		return fmt.Errorf("invalid billing mode: %s", m)
	}
	return nil
}

// MemberRole represents a user's role within a team
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

func (r MemberRole) String() string {
	return string(r)
}

func (r MemberRole) Validate() error {
	allowed := []MemberRole{
		MemberRoleOwner,
		MemberRoleAdmin,
		MemberRoleMember,
	}
	if !lo.Contains(allowed, r) {
		return fmt.Errorf("invalid member role: %s", r)
	}
	return nil
}

// MemberStatus represents membership state. Removal is soft so history
// is preserved.
type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "ACTIVE"
	MemberStatusRemoved MemberStatus = "REMOVED"
)

func (s MemberStatus) String() string {
	return string(s)
}

func (s MemberStatus) Validate() error {
	allowed := []MemberStatus{
		MemberStatusActive,
		MemberStatusRemoved,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid member status: %s", s)
	}
	return nil
}

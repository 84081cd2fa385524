package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex app_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	UUID_PREFIX_APP               = "app"
	UUID_PREFIX_APP_SECRET        = "sec"
	UUID_PREFIX_TEAM              = "team"
	UUID_PREFIX_BILLING_ENTITY    = "bill"
	UUID_PREFIX_TEAM_MEMBER       = "mem"
	UUID_PREFIX_PLAN              = "plan"
	UUID_PREFIX_ADDON             = "addon"
	UUID_PREFIX_PRODUCT_MAP       = "pmap"
	UUID_PREFIX_SUBSCRIPTION      = "subs"
	UUID_PREFIX_BUNDLE            = "bndl"
	UUID_PREFIX_METER_POLICY      = "mpol"
	UUID_PREFIX_CONTRACT          = "cont"
	UUID_PREFIX_CONTRACT_OVERRIDE = "covr"
	UUID_PREFIX_PRICE_BOOK        = "pb"
	UUID_PREFIX_PRICE_RULE        = "pr"
	UUID_PREFIX_USAGE_EVENT       = "evt"
	UUID_PREFIX_LINE_ITEM         = "li"
	UUID_PREFIX_LEDGER_ACCOUNT    = "lacc"
	UUID_PREFIX_LEDGER_ENTRY      = "lent"
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "ili"
	UUID_PREFIX_AUDIT_LOG         = "alog"
	UUID_PREFIX_REQUEST           = "req"
	UUID_PREFIX_JTI               = "jti"
)

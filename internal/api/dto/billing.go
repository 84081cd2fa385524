package dto

import (
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// UpdateContractStatusRequest transitions a contract
type UpdateContractStatusRequest struct {
	Status types.ContractStatus `json:"status" validate:"required"`
}

// ReplaceOverridesRequest swaps a contract's full override set
type ReplaceOverridesRequest struct {
	Overrides []service.OverrideRequest `json:"overrides" validate:"dive"`
}

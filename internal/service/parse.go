package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"govcontract-signals/internal/fetcher"
)

const awardURLPrefix = "https://www.usaspending.gov/award/"

var actionTypeNames = map[string]string{
	"A": "New",
	"B": "Continuation",
	"C": "Modification",
	"D": "Deletion",
	"G": "Grant",
}

// ParsedContract is the normalized projection of a raw transaction that the
// pipeline operates on.
type ParsedContract struct {
	ContractID       string
	AwardeeName      string
	AgencyName       string
	ActionType       string
	Description      string
	AwardAmount      decimal.Decimal
	PotentialCeiling *decimal.Decimal
	ContractDate     *time.Time
	SourceURL        string
}

// ParseTransaction validates and normalizes one raw transaction. Returns
// (nil, false) when the record is missing required fields or falls below the
// minimum award amount; such records are dropped, not errored.
//
// The contract id is deterministic for re-fetches of the same transaction:
// the provider's internal id (or award id + modification + action date),
// suffixed with the modification number.
func ParseTransaction(raw fetcher.RawTransaction, minAwardAmount decimal.Decimal) (*ParsedContract, bool) {
	if raw.RecipientName == "" {
		return nil, false
	}

	amount := raw.TransactionAmount.Decimal
	if amount.LessThan(minAwardAmount) {
		return nil, false
	}

	mod := raw.Mod
	if mod == "" {
		mod = "0"
	}

	contractID := raw.GeneratedInternalID
	if contractID == "" {
		if raw.AwardID == "" && raw.ActionDate == "" {
			return nil, false
		}
		contractID = fmt.Sprintf("%s_%s_%s", raw.AwardID, mod, raw.ActionDate)
	}
	contractID = fmt.Sprintf("%s_MOD%s", contractID, mod)

	agencyName := raw.AwardingAgency
	if raw.AwardingSubAgency != "" && raw.AwardingSubAgency != raw.AwardingAgency {
		agencyName = fmt.Sprintf("%s - %s", raw.AwardingAgency, raw.AwardingSubAgency)
	}
	if agencyName == "" {
		agencyName = "Unknown Agency"
	}

	contract := &ParsedContract{
		ContractID:  contractID,
		AwardeeName: raw.RecipientName,
		AgencyName:  agencyName,
		ActionType:  actionTypeName(raw.ActionType),
		Description: raw.Description,
		AwardAmount: amount,
	}

	if raw.ActionDate != "" {
		if date, err := time.Parse("2006-01-02", raw.ActionDate); err == nil {
			contract.ContractDate = &date
		}
	}

	if raw.GeneratedInternalID != "" {
		contract.SourceURL = awardURLPrefix + raw.GeneratedInternalID
	}

	return contract, true
}

func actionTypeName(code string) string {
	if name, ok := actionTypeNames[code]; ok {
		return name
	}
	return code
}

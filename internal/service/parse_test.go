package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govcontract-signals/internal/fetcher"
)

func amount(v int64) fetcher.Amount {
	return fetcher.Amount{Decimal: decimal.NewFromInt(v)}
}

func baseTransaction() fetcher.RawTransaction {
	return fetcher.RawTransaction{
		RecipientName:       "KRATOS DEFENSE & SECURITY SOLUTIONS, INC.",
		AwardID:             "FA8611-26-C-0001",
		Mod:                 "2",
		ActionDate:          "2026-08-20",
		TransactionAmount:   amount(75_000_000),
		AwardingAgency:      "Department of Defense",
		AwardingSubAgency:   "Department of the Air Force",
		ActionType:          "C",
		Description:         "Tactical drone production",
		GeneratedInternalID: "CONT_AWD_FA8611_9700",
	}
}

func minAward() decimal.Decimal {
	return decimal.NewFromInt(1_000_000)
}

func TestParseTransaction(t *testing.T) {
	contract, ok := ParseTransaction(baseTransaction(), minAward())
	require.True(t, ok)

	assert.Equal(t, "CONT_AWD_FA8611_9700_MOD2", contract.ContractID)
	assert.Equal(t, "KRATOS DEFENSE & SECURITY SOLUTIONS, INC.", contract.AwardeeName)
	assert.Equal(t, "Department of Defense - Department of the Air Force", contract.AgencyName)
	assert.Equal(t, "Modification", contract.ActionType)
	assert.True(t, contract.AwardAmount.Equal(decimal.NewFromInt(75_000_000)))
	require.NotNil(t, contract.ContractDate)
	assert.Equal(t, "2026-08-20", contract.ContractDate.Format("2006-01-02"))
	assert.Equal(t, "https://www.usaspending.gov/award/CONT_AWD_FA8611_9700", contract.SourceURL)
}

func TestParseTransactionIDDeterministic(t *testing.T) {
	raw := baseTransaction()

	first, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	second, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Equal(t, first.ContractID, second.ContractID)
}

func TestParseTransactionIDFallback(t *testing.T) {
	raw := baseTransaction()
	raw.GeneratedInternalID = ""

	contract, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Equal(t, "FA8611-26-C-0001_2_2026-08-20_MOD2", contract.ContractID)
	assert.Empty(t, contract.SourceURL)
}

func TestParseTransactionModDefaults(t *testing.T) {
	raw := baseTransaction()
	raw.Mod = ""

	contract, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Equal(t, "CONT_AWD_FA8611_9700_MOD0", contract.ContractID)
}

func TestParseTransactionDrops(t *testing.T) {
	t.Run("missing recipient", func(t *testing.T) {
		raw := baseTransaction()
		raw.RecipientName = ""
		_, ok := ParseTransaction(raw, minAward())
		assert.False(t, ok)
	})

	t.Run("below minimum award", func(t *testing.T) {
		raw := baseTransaction()
		raw.TransactionAmount = amount(250_000)
		_, ok := ParseTransaction(raw, minAward())
		assert.False(t, ok)
	})

	t.Run("no identifiers at all", func(t *testing.T) {
		raw := baseTransaction()
		raw.GeneratedInternalID = ""
		raw.AwardID = ""
		raw.ActionDate = ""
		_, ok := ParseTransaction(raw, minAward())
		assert.False(t, ok)
	})
}

func TestParseTransactionAgencyName(t *testing.T) {
	t.Run("sub agency equals agency", func(t *testing.T) {
		raw := baseTransaction()
		raw.AwardingSubAgency = raw.AwardingAgency
		contract, ok := ParseTransaction(raw, minAward())
		require.True(t, ok)
		assert.Equal(t, "Department of Defense", contract.AgencyName)
	})

	t.Run("no agency at all", func(t *testing.T) {
		raw := baseTransaction()
		raw.AwardingAgency = ""
		raw.AwardingSubAgency = ""
		contract, ok := ParseTransaction(raw, minAward())
		require.True(t, ok)
		assert.Equal(t, "Unknown Agency", contract.AgencyName)
	})
}

func TestParseTransactionActionType(t *testing.T) {
	raw := baseTransaction()
	raw.ActionType = "A"
	contract, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Equal(t, "New", contract.ActionType)

	raw.ActionType = "ZZ"
	contract, ok = ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Equal(t, "ZZ", contract.ActionType)
}

func TestParseTransactionBadDate(t *testing.T) {
	raw := baseTransaction()
	raw.ActionDate = "08/20/2026"

	contract, ok := ParseTransaction(raw, minAward())
	require.True(t, ok)
	assert.Nil(t, contract.ContractDate)
}

package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name        string
		groups      []GroupTotal
		wantAvail   string
		wantPending string
	}{
		{
			name:        "no transactions",
			groups:      nil,
			wantAvail:   "0",
			wantPending: "0",
		},
		{
			name: "deposits minus withdrawals",
			groups: []GroupTotal{
				{Status: StatusSuccess, Type: TypeDeposit, Total: d("1000")},
				{Status: StatusSuccess, Type: TypeWithdrawal, Total: d("300")},
			},
			wantAvail:   "700",
			wantPending: "0",
		},
		{
			name: "pending never reaches available",
			groups: []GroupTotal{
				{Status: StatusSuccess, Type: TypeDeposit, Total: d("1000")},
				{Status: StatusSuccess, Type: TypeWithdrawal, Total: d("300")},
				{Status: StatusPending, Type: TypeDeposit, Total: d("750")},
			},
			wantAvail:   "700",
			wantPending: "750",
		},
		{
			name: "pending withdrawals reduce net pending",
			groups: []GroupTotal{
				{Status: StatusPending, Type: TypeDeposit, Total: d("100")},
				{Status: StatusPending, Type: TypeWithdrawal, Total: d("40.5")},
			},
			wantAvail:   "0",
			wantPending: "59.5",
		},
		{
			name: "cancelled rows are ignored",
			groups: []GroupTotal{
				{Status: StatusSuccess, Type: TypeDeposit, Total: d("50")},
				{Status: StatusCancelled, Type: TypeDeposit, Total: d("500")},
				{Status: StatusCancelled, Type: TypeWithdrawal, Total: d("20")},
			},
			wantAvail:   "50",
			wantPending: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.groups)
			assert.True(t, got.Available.Equal(d(tt.wantAvail)), "available = %s", got.Available)
			assert.True(t, got.NetPending.Equal(d(tt.wantPending)), "netPending = %s", got.NetPending)
			assert.True(t, got.Effective.Equal(got.Available), "effective must mirror available")
		})
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	groups := []GroupTotal{
		{Status: StatusSuccess, Type: TypeDeposit, Total: d("12.34")},
		{Status: StatusPending, Type: TypeDeposit, Total: d("5")},
	}
	assert.Equal(t, Aggregate(groups), Aggregate(groups))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(d("0.01")))
	assert.NoError(t, ValidateAmount(d("1000")))
	assert.Error(t, ValidateAmount(d("0")))
	assert.Error(t, ValidateAmount(d("-5")))
	assert.Error(t, ValidateAmount(d("1.005")))
}

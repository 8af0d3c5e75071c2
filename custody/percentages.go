package custody

import (
	"github.com/shopspring/decimal"
	"github.com/warp/custody-engine/generic"
)

var hundred = decimal.NewFromInt(100)

// Shares is each custodian's percentage of the resolved days of a period.
type Shares struct {
	A     decimal.Decimal
	B     decimal.Decimal
	DaysA int
	DaysB int
}

// Percentages tallies every day of [p.Start, p.End). Days resolving to
// neither custodian are left out of the denominator.
func (r Resolver) Percentages(p generic.Period, today generic.Date, set RecordSet) Shares {
	var shares Shares
	for _, day := range p.Days() {
		switch r.Resolve(day, today, set).Side {
		case generic.SideA:
			shares.DaysA++
		case generic.SideB:
			shares.DaysB++
		}
	}

	total := shares.DaysA + shares.DaysB
	if total == 0 {
		shares.A, shares.B = decimal.Zero, decimal.Zero
		return shares
	}

	denom := decimal.NewFromInt(int64(total))
	shares.A = decimal.NewFromInt(int64(shares.DaysA)).Mul(hundred).Div(denom).Round(2)
	shares.B = decimal.NewFromInt(int64(shares.DaysB)).Mul(hundred).Div(denom).Round(2)
	return shares
}

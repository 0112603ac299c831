package org

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Band はマネージャー 1 人分の許容給与レンジと判定結果です。
type Band struct {
	Employee   *Employee
	LowerBound decimal.Decimal
	UpperBound decimal.Decimal
	Deviation  decimal.Decimal
}

// SalaryBands は給与レンジ判定の結果です。いずれもレコード順です。
type SalaryBands struct {
	Underpaid []*Employee
	Overpaid  []*Employee
	// Bands は部下を持つ全マネージャーのレンジです。
	Bands []Band
}

// AnalyzeSalaryBands は直属部下の平均給与を基準にマネージャーの給与を判定します。
//
// 下限は平均の (100+belowPct)%、上限は (100+abovePct)% で、どちらも小数第 2 位で
// 四捨五入します。下限判定を先に行うため、レンジが交差する設定では下限側が優先されます。
// 判定されたマネージャーの SalaryDeviation には給与と超過した境界との差を設定します。
func AnalyzeSalaryBands(records *Records, belowPct, abovePct decimal.Decimal) (*SalaryBands, error) {
	if records == nil {
		return nil, fmt.Errorf("%w: records are required", ErrConfiguration)
	}
	if belowPct.IsNegative() {
		return nil, fmt.Errorf("%w: below=%s", ErrInvalidPercentage, belowPct)
	}
	if abovePct.IsNegative() {
		return nil, fmt.Errorf("%w: above=%s", ErrInvalidPercentage, abovePct)
	}

	lowerFactor := hundred.Add(belowPct)
	upperFactor := hundred.Add(abovePct)

	result := &SalaryBands{}
	for _, e := range records.All() {
		avg := e.Subordinates.AverageSalary
		if avg.IsZero() {
			continue
		}

		band := Band{
			Employee:   e,
			LowerBound: avg.Mul(lowerFactor).DivRound(hundred, salaryScale),
			UpperBound: avg.Mul(upperFactor).DivRound(hundred, salaryScale),
		}

		switch {
		case e.Salary.LessThan(band.LowerBound):
			band.Deviation = e.Salary.Sub(band.LowerBound)
			result.Underpaid = append(result.Underpaid, e)
		case e.Salary.GreaterThan(band.UpperBound):
			band.Deviation = e.Salary.Sub(band.UpperBound)
			result.Overpaid = append(result.Overpaid, e)
		default:
			band.Deviation = decimal.Zero
		}

		e.SalaryDeviation = band.Deviation
		result.Bands = append(result.Bands, band)
	}

	return result, nil
}

package org

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// salaryScale は金額を扱う小数点以下の桁数です。
const salaryScale = 2

// Employee は社員レコードです。
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	// ManagerID はルート社員のみ空文字です。
	ManagerID string
	Salary    decimal.Decimal

	// 以下は BuildHierarchy / AnalyzeSalaryBands が設定する派生値です。
	SalaryDeviation decimal.Decimal
	ReportingDepth  int
	Subordinates    Aggregate
}

// Aggregate は直属部下の集計値です。
type Aggregate struct {
	Count         int
	SalarySum     decimal.Decimal
	AverageSalary decimal.Decimal
	IDs           []string
}

// FullName は "名 姓" 形式の氏名を返します。
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// IsRoot はマネージャーを持たない社員かどうかを返します。
func (e *Employee) IsRoot() bool {
	return e.ManagerID == ""
}

// Records は ID をキーとする社員レコードの集合です。挿入順を保持し、
// 各解析の結果はこの順序で返されます。
type Records struct {
	byID  map[string]*Employee
	order []string
}

// NewRecords は社員を挿入順に登録した Records を生成します。
func NewRecords(employees ...*Employee) (*Records, error) {
	r := &Records{byID: make(map[string]*Employee, len(employees))}
	for _, e := range employees {
		if err := r.Add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add は社員を末尾に追加します。ID の重複はエラーです。
func (r *Records) Add(e *Employee) error {
	if e == nil {
		return fmt.Errorf("%w: nil employee", ErrConfiguration)
	}
	if r.byID == nil {
		r.byID = make(map[string]*Employee)
	}
	if _, exists := r.byID[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	r.byID[e.ID] = e
	r.order = append(r.order, e.ID)
	return nil
}

// Get は ID で社員を取得します。
func (r *Records) Get(id string) (*Employee, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.byID[id]
	return e, ok
}

// Len は登録件数を返します。
func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// All は挿入順の社員一覧を返します。
func (r *Records) All() []*Employee {
	if r == nil {
		return nil
	}
	out := make([]*Employee, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

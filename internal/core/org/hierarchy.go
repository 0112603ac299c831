package org

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Hierarchy は BuildHierarchy が構築した組織ツリーです。親子関係は ID で保持します。
type Hierarchy struct {
	root    *Employee
	records *Records
}

// Root はルート社員を返します。
func (h *Hierarchy) Root() *Employee {
	return h.root
}

// Records はツリーの元になった社員レコードを返します。
func (h *Hierarchy) Records() *Records {
	return h.records
}

// Subordinates は直属部下をリンク順に返します。
func (h *Hierarchy) Subordinates(id string) []*Employee {
	e, ok := h.records.Get(id)
	if !ok {
		return nil
	}
	out := make([]*Employee, 0, len(e.Subordinates.IDs))
	for _, subID := range e.Subordinates.IDs {
		if sub, ok := h.records.Get(subID); ok {
			out = append(out, sub)
		}
	}
	return out
}

// Depth は社員の階層の深さを返します。
func (h *Hierarchy) Depth(id string) (int, bool) {
	e, ok := h.records.Get(id)
	if !ok {
		return 0, false
	}
	return e.ReportingDepth, true
}

// Aggregate は社員の直属部下の集計値を返します。
func (h *Hierarchy) Aggregate(id string) (Aggregate, bool) {
	e, ok := h.records.Get(id)
	if !ok {
		return Aggregate{}, false
	}
	return e.Subordinates, true
}

// BuildHierarchy はマネージャー参照を解決して組織ツリーを構築します。
//
// 直属部下の集計値と各社員の階層の深さは作業用の状態に蓄積され、全件の処理が
// 成功した場合にのみ records へ反映されます。エラー時は records を変更しません。
func BuildHierarchy(records *Records) (*Hierarchy, error) {
	if records.Len() == 0 {
		return nil, ErrEmptyRecords
	}

	pass := newBuildPass(records)
	var roots []*Employee
	for _, e := range records.All() {
		if e.IsRoot() {
			roots = append(roots, e)
			continue
		}

		manager, ok := records.Get(e.ManagerID)
		if !ok {
			return nil, &ReferenceError{EmployeeID: e.ID, ManagerID: e.ManagerID}
		}
		pass.linkSubordinate(e, manager)

		if _, err := pass.computeDepth(e); err != nil {
			return nil, err
		}
	}

	switch len(roots) {
	case 0:
		return nil, ErrNoRoot
	case 1:
	default:
		ids := make([]string, 0, len(roots))
		for _, r := range roots {
			ids = append(ids, r.ID)
		}
		return nil, fmt.Errorf("%w: %s", ErrMultipleRoots, strings.Join(ids, ", "))
	}

	pass.commit()
	return &Hierarchy{root: roots[0], records: records}, nil
}

type buildPass struct {
	records    *Records
	aggregates map[string]*Aggregate
	depths     map[string]int
}

func newBuildPass(records *Records) *buildPass {
	return &buildPass{
		records:    records,
		aggregates: make(map[string]*Aggregate),
		depths:     make(map[string]int, records.Len()),
	}
}

// linkSubordinate は employee を manager の直属部下として集計に加えます。
// 件数と合計の加算のみで平均を再計算するため、リンク順序に依存しません。
func (p *buildPass) linkSubordinate(employee, manager *Employee) {
	agg, ok := p.aggregates[manager.ID]
	if !ok {
		agg = &Aggregate{}
		p.aggregates[manager.ID] = agg
	}

	agg.Count++
	agg.SalarySum = agg.SalarySum.Add(employee.Salary)
	agg.AverageSalary = agg.SalarySum.DivRound(decimal.NewFromInt(int64(agg.Count)), salaryScale)
	agg.IDs = append(agg.IDs, employee.ID)
}

// computeDepth はマネージャー参照をルートまで辿り、経由した社員の深さをまとめて記録します。
func (p *buildPass) computeDepth(employee *Employee) (int, error) {
	var (
		chain   []*Employee
		visited = make(map[string]struct{})
		current = employee
		base    int
	)

	for {
		if d, ok := p.depths[current.ID]; ok {
			base = d
			break
		}
		if current.IsRoot() {
			p.depths[current.ID] = 0
			break
		}
		if _, seen := visited[current.ID]; seen {
			return 0, fmt.Errorf("%w: reached %s twice from %s", ErrCycle, current.ID, employee.ID)
		}
		visited[current.ID] = struct{}{}
		chain = append(chain, current)

		manager, ok := p.records.Get(current.ManagerID)
		if !ok {
			return 0, &ReferenceError{EmployeeID: current.ID, ManagerID: current.ManagerID}
		}
		current = manager
	}

	for i := len(chain) - 1; i >= 0; i-- {
		base++
		p.depths[chain[i].ID] = base
	}
	return p.depths[employee.ID], nil
}

func (p *buildPass) commit() {
	for _, e := range p.records.All() {
		if agg, ok := p.aggregates[e.ID]; ok {
			e.Subordinates = *agg
		} else {
			e.Subordinates = Aggregate{}
		}
		e.ReportingDepth = p.depths[e.ID]
		e.SalaryDeviation = decimal.Zero
	}
}

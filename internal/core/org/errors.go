package org

import (
	"errors"
	"fmt"
)

// 以下の 3 つが分類用のエラーです。個別のエラーはいずれかをラップします。
var (
	ErrConfiguration = errors.New("org: invalid configuration")
	ErrReference     = errors.New("org: unresolved manager reference")
	ErrStructural    = errors.New("org: invalid hierarchy structure")
)

var (
	ErrEmptyRecords      = fmt.Errorf("%w: empty employee records", ErrConfiguration)
	ErrDuplicateID       = fmt.Errorf("%w: duplicate employee id", ErrConfiguration)
	ErrInvalidPercentage = fmt.Errorf("%w: percentage must not be negative", ErrConfiguration)
	ErrInvalidMaxDepth   = fmt.Errorf("%w: max reporting depth out of range", ErrConfiguration)
	ErrNoRoot            = fmt.Errorf("%w: no employee without manager", ErrStructural)
	ErrMultipleRoots     = fmt.Errorf("%w: more than one employee without manager", ErrStructural)
	ErrCycle             = fmt.Errorf("%w: manager cycle detected", ErrStructural)
)

// ReferenceError は存在しないマネージャー ID を参照した社員を表します。
type ReferenceError struct {
	EmployeeID string
	ManagerID  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("org: employee %s references unknown manager %s", e.EmployeeID, e.ManagerID)
}

func (e *ReferenceError) Unwrap() error {
	return ErrReference
}

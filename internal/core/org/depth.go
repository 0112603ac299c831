package org

import "fmt"

// MaxReportingDepthLimit は FindDeepReports が受け付ける閾値の上限です。
const MaxReportingDepthLimit = 999

// FindDeepReports は階層の深さが maxDepth を超える社員をレコード順に返します。
// BuildHierarchy 済みの records を前提とします。
func FindDeepReports(records *Records, maxDepth int) ([]*Employee, error) {
	if records == nil {
		return nil, fmt.Errorf("%w: records are required", ErrConfiguration)
	}
	if maxDepth < 0 || maxDepth > MaxReportingDepthLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxDepth, maxDepth)
	}

	var deep []*Employee
	for _, e := range records.All() {
		if e.ReportingDepth > maxDepth {
			deep = append(deep, e)
		}
	}
	return deep, nil
}

package main

import (
	"fmt"
	"io"

	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
)

func writeReport(w io.Writer, report *org.Report) error {
	bands := make(map[string]org.Band, len(report.Bands))
	for _, b := range report.Bands {
		bands[b.Employee.ID] = b
	}

	if _, err := fmt.Fprintf(w, "CEO: %s %s\n", report.Root.ID, report.Root.FullName()); err != nil {
		return err
	}

	for _, e := range report.Underpaid {
		b := bands[e.ID]
		if _, err := fmt.Fprintf(w, "Manager: %s | earns %s less than required %s | salary %s\n",
			e.FullName(), b.Deviation.Abs().StringFixed(2), b.LowerBound.StringFixed(2), e.Salary.StringFixed(2)); err != nil {
			return err
		}
	}

	for _, e := range report.Overpaid {
		b := bands[e.ID]
		if _, err := fmt.Fprintf(w, "Manager: %s | earns %s more than allowed %s | salary %s\n",
			e.FullName(), b.Deviation.StringFixed(2), b.UpperBound.StringFixed(2), e.Salary.StringFixed(2)); err != nil {
			return err
		}
	}

	maxDepth := report.Parameters.MaxReportingDepth
	for _, e := range report.DeepReports {
		if _, err := fmt.Fprintf(w, "Employee: %s | reporting line too long by %d | actual %d | threshold %d\n",
			e.FullName(), e.ReportingDepth-maxDepth, e.ReportingDepth, maxDepth); err != nil {
			return err
		}
	}

	return nil
}

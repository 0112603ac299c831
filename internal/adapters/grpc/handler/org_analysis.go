package handler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// リクエストで受け付けるフィールド名です。
const (
	fieldBelowPercentage   = "below_percentage"
	fieldAbovePercentage   = "above_percentage"
	fieldMaxReportingDepth = "max_reporting_depth"
)

// AnalysisObserver は分析結果を観測します。
type AnalysisObserver interface {
	ObserveAnalysis(employees, underpaid, overpaid, deep int)
	ObserveAnalysisError()
}

// OrgAnalysisGrpcHandler は OrgAnalysisService の gRPC 実装です。
type OrgAnalysisGrpcHandler struct {
	svc      org.UseCase
	defaults org.AnalyzeInput
	observer AnalysisObserver
}

// NewOrgAnalysisGrpcHandler は OrgAnalysisGrpcHandler を生成します。
// リクエストで省略されたパラメータには defaults を使用します。observer は nil でも構いません。
func NewOrgAnalysisGrpcHandler(svc org.UseCase, defaults org.AnalyzeInput, observer AnalysisObserver) *OrgAnalysisGrpcHandler {
	return &OrgAnalysisGrpcHandler{svc: svc, defaults: defaults, observer: observer}
}

// Analyze は組織分析を実行し、結果を Struct で返します。
func (h *OrgAnalysisGrpcHandler) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	in, err := parseAnalyzeRequest(req, h.defaults)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	report, err := h.svc.AnalyzeOrganization(ctx, in)
	if err != nil {
		if h.observer != nil {
			h.observer.ObserveAnalysisError()
		}
		return nil, toStatusError(err)
	}

	if h.observer != nil {
		h.observer.ObserveAnalysis(report.EmployeeCount, len(report.Underpaid), len(report.Overpaid), len(report.DeepReports))
	}

	resp, err := toProtoReport(report)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func parseAnalyzeRequest(req *structpb.Struct, defaults org.AnalyzeInput) (org.AnalyzeInput, error) {
	in := defaults
	for name, value := range req.GetFields() {
		switch name {
		case fieldBelowPercentage:
			pct, err := decimalValue(value)
			if err != nil {
				return in, fmt.Errorf("%s: %w", name, err)
			}
			in.BelowPercentage = pct
		case fieldAbovePercentage:
			pct, err := decimalValue(value)
			if err != nil {
				return in, fmt.Errorf("%s: %w", name, err)
			}
			in.AbovePercentage = pct
		case fieldMaxReportingDepth:
			depth, err := intValue(value)
			if err != nil {
				return in, fmt.Errorf("%s: %w", name, err)
			}
			in.MaxReportingDepth = depth
		default:
			return in, fmt.Errorf("unknown field %q", name)
		}
	}
	return in, nil
}

func decimalValue(v *structpb.Value) (decimal.Decimal, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return decimal.NewFromString(kind.StringValue)
	case *structpb.Value_NumberValue:
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, fmt.Errorf("must be finite")
		}
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, fmt.Errorf("must be a number or decimal string")
	}
}

func intValue(v *structpb.Value) (int, error) {
	kind, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("must be a number")
	}
	n := kind.NumberValue
	if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("must be an integer, got %v", n)
	}
	return int(n), nil
}

func toProtoReport(report *org.Report) (*structpb.Struct, error) {
	bandsByID := make(map[string]org.Band, len(report.Bands))
	for _, b := range report.Bands {
		bandsByID[b.Employee.ID] = b
	}

	underpaid := make([]any, 0, len(report.Underpaid))
	for _, e := range report.Underpaid {
		underpaid = append(underpaid, toBandValue(e, bandsByID[e.ID]))
	}
	overpaid := make([]any, 0, len(report.Overpaid))
	for _, e := range report.Overpaid {
		overpaid = append(overpaid, toBandValue(e, bandsByID[e.ID]))
	}

	maxDepth := report.Parameters.MaxReportingDepth
	deep := make([]any, 0, len(report.DeepReports))
	for _, e := range report.DeepReports {
		v := toEmployeeValue(e)
		v["excess_depth"] = e.ReportingDepth - maxDepth
		deep = append(deep, v)
	}

	var root any
	if report.Root != nil {
		root = toEmployeeValue(report.Root)
	}

	return structpb.NewStruct(map[string]any{
		"run_id":         report.RunID,
		"generated_at":   report.GeneratedAt.UTC().Format(time.RFC3339Nano),
		"employee_count": report.EmployeeCount,
		"parameters": map[string]any{
			fieldBelowPercentage:   report.Parameters.BelowPercentage.String(),
			fieldAbovePercentage:   report.Parameters.AbovePercentage.String(),
			fieldMaxReportingDepth: maxDepth,
		},
		"root":         root,
		"underpaid":    underpaid,
		"overpaid":     overpaid,
		"deep_reports": deep,
	})
}

func toEmployeeValue(e *org.Employee) map[string]any {
	return map[string]any{
		"id":                e.ID,
		"first_name":        e.FirstName,
		"last_name":         e.LastName,
		"manager_id":        e.ManagerID,
		"salary":            e.Salary.StringFixed(2),
		"reporting_depth":   e.ReportingDepth,
		"subordinate_count": e.Subordinates.Count,
		"subordinate_avg":   e.Subordinates.AverageSalary.StringFixed(2),
	}
}

func toBandValue(e *org.Employee, band org.Band) map[string]any {
	v := toEmployeeValue(e)
	v["lower_bound"] = band.LowerBound.StringFixed(2)
	v["upper_bound"] = band.UpperBound.StringFixed(2)
	v["deviation"] = band.Deviation.StringFixed(2)
	return v
}

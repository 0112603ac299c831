package handler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ogurasousui/codex-org-analytics/internal/adapters/grpc/orgv1"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubOrgUseCase struct {
	in     org.AnalyzeInput
	out    *org.Report
	err    error
	called bool
}

func (s *stubOrgUseCase) AnalyzeOrganization(ctx context.Context, in org.AnalyzeInput) (*org.Report, error) {
	s.called = true
	s.in = in
	return s.out, s.err
}

type recordingObserver struct {
	successes int
	failures  int
	last      [4]int
}

func (r *recordingObserver) ObserveAnalysis(employees, underpaid, overpaid, deep int) {
	r.successes++
	r.last = [4]int{employees, underpaid, overpaid, deep}
}

func (r *recordingObserver) ObserveAnalysisError() {
	r.failures++
}

type staticSource struct {
	employees []*org.Employee
}

func (s staticSource) ListAll(context.Context) ([]*org.Employee, error) {
	out := make([]*org.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func testDefaults() org.AnalyzeInput {
	return org.AnalyzeInput{
		BelowPercentage:   decimal.NewFromInt(20),
		AbovePercentage:   decimal.NewFromInt(50),
		MaxReportingDepth: 4,
	}
}

func underpaidTeam() []*org.Employee {
	return []*org.Employee{
		{ID: "M000000001", FirstName: "Maria", LastName: "Lopez", Salary: decimal.RequireFromString("1170.00")},
		{ID: "S000000001", FirstName: "Sam", LastName: "Park", ManagerID: "M000000001", Salary: decimal.RequireFromString("1000.00")},
		{ID: "S000000002", FirstName: "Ivy", LastName: "Chen", ManagerID: "M000000001", Salary: decimal.RequireFromString("1000.00")},
	}
}

func TestParseAnalyzeRequest(t *testing.T) {
	t.Parallel()

	req, err := structpb.NewStruct(map[string]any{
		fieldBelowPercentage:   "12.5",
		fieldAbovePercentage:   30,
		fieldMaxReportingDepth: 2,
	})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	in, err := parseAnalyzeRequest(req, testDefaults())
	if err != nil {
		t.Fatalf("parseAnalyzeRequest returned error: %v", err)
	}
	if in.BelowPercentage.String() != "12.5" || in.AbovePercentage.String() != "30" || in.MaxReportingDepth != 2 {
		t.Fatalf("unexpected input: %+v", in)
	}

	empty, err := parseAnalyzeRequest(&structpb.Struct{}, testDefaults())
	if err != nil {
		t.Fatalf("unexpected error for empty request: %v", err)
	}
	if empty.BelowPercentage.String() != "20" || empty.MaxReportingDepth != 4 {
		t.Fatalf("expected defaults, got %+v", empty)
	}
}

func TestParseAnalyzeRequest_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]any{
		"unknown field":      {"depth": 1},
		"fractional depth":   {fieldMaxReportingDepth: 1.5},
		"string depth":       {fieldMaxReportingDepth: "3"},
		"bad percentage":     {fieldBelowPercentage: "twenty"},
		"boolean percentage": {fieldAbovePercentage: true},
	}

	for name, fields := range cases {
		name, fields := name, fields
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := structpb.NewStruct(fields)
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			if _, err := parseAnalyzeRequest(req, testDefaults()); err == nil {
				t.Fatalf("expected error for %v", fields)
			}
		})
	}
}

func TestOrgAnalysisGrpcHandler_Analyze(t *testing.T) {
	t.Parallel()

	manager := &org.Employee{
		ID: "M000000001", FirstName: "Maria", LastName: "Lopez",
		Salary:       decimal.RequireFromString("1170.00"),
		Subordinates: org.Aggregate{Count: 2, AverageSalary: decimal.RequireFromString("1000.00")},
	}
	deep := &org.Employee{ID: "S000000001", FirstName: "Sam", LastName: "Park", ManagerID: "M000000001", ReportingDepth: 3}

	uc := &stubOrgUseCase{out: &org.Report{
		RunID:         "run-1",
		GeneratedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Parameters:    org.AnalyzeInput{BelowPercentage: decimal.NewFromInt(20), AbovePercentage: decimal.NewFromInt(50), MaxReportingDepth: 1},
		EmployeeCount: 3,
		Root:          manager,
		Underpaid:     []*org.Employee{manager},
		Bands: []org.Band{{
			Employee:   manager,
			LowerBound: decimal.RequireFromString("1200.00"),
			UpperBound: decimal.RequireFromString("1500.00"),
			Deviation:  decimal.RequireFromString("-30.00"),
		}},
		DeepReports: []*org.Employee{deep},
	}}
	observer := &recordingObserver{}
	h := NewOrgAnalysisGrpcHandler(uc, testDefaults(), observer)

	req, _ := structpb.NewStruct(map[string]any{fieldMaxReportingDepth: 1})
	resp, err := h.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if uc.in.MaxReportingDepth != 1 || uc.in.BelowPercentage.String() != "20" {
		t.Fatalf("unexpected input passed to use case: %+v", uc.in)
	}

	fields := resp.GetFields()
	if fields["run_id"].GetStringValue() != "run-1" {
		t.Fatalf("unexpected run id: %v", fields["run_id"])
	}
	if fields["generated_at"].GetStringValue() != "2025-03-01T09:00:00Z" {
		t.Fatalf("unexpected generated_at: %v", fields["generated_at"])
	}

	underpaid := fields["underpaid"].GetListValue().GetValues()
	if len(underpaid) != 1 {
		t.Fatalf("expected one underpaid manager, got %d", len(underpaid))
	}
	band := underpaid[0].GetStructValue().GetFields()
	if band["deviation"].GetStringValue() != "-30.00" || band["lower_bound"].GetStringValue() != "1200.00" {
		t.Fatalf("unexpected band: %v", band)
	}
	if got := len(fields["overpaid"].GetListValue().GetValues()); got != 0 {
		t.Fatalf("expected empty overpaid list, got %d", got)
	}

	deepReports := fields["deep_reports"].GetListValue().GetValues()
	if len(deepReports) != 1 || deepReports[0].GetStructValue().GetFields()["excess_depth"].GetNumberValue() != 2 {
		t.Fatalf("unexpected deep reports: %v", deepReports)
	}

	if observer.successes != 1 || observer.last != [4]int{3, 1, 0, 1} {
		t.Fatalf("unexpected observer state: %+v", observer)
	}
}

func TestOrgAnalysisGrpcHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"configuration", org.ErrInvalidMaxDepth, codes.InvalidArgument},
		{"reference", &org.ReferenceError{EmployeeID: "a", ManagerID: "b"}, codes.FailedPrecondition},
		{"structural", org.ErrCycle, codes.FailedPrecondition},
		{"canceled", context.Canceled, codes.Canceled},
		{"internal", errors.New("disk on fire"), codes.Internal},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			observer := &recordingObserver{}
			h := NewOrgAnalysisGrpcHandler(&stubOrgUseCase{err: tc.err}, testDefaults(), observer)

			_, err := h.Analyze(context.Background(), &structpb.Struct{})
			if status.Code(err) != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if observer.failures != 1 {
				t.Fatalf("expected failure to be observed")
			}
		})
	}
}

func TestOrgAnalysisGrpcHandler_InvalidRequest(t *testing.T) {
	t.Parallel()

	uc := &stubOrgUseCase{}
	h := NewOrgAnalysisGrpcHandler(uc, testDefaults(), nil)

	if _, err := h.Analyze(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for nil request, got %v", err)
	}

	req, _ := structpb.NewStruct(map[string]any{"unexpected": "x"})
	if _, err := h.Analyze(context.Background(), req); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown field, got %v", err)
	}
	if uc.called {
		t.Fatal("use case must not be called for invalid requests")
	}
}

func TestOrgAnalysisService_BufconnRoundTrip(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	svc := org.NewService(staticSource{employees: underpaidTeam()}, nil, nil)
	orgv1.RegisterOrgAnalysisServiceServer(srv, NewOrgAnalysisGrpcHandler(svc, testDefaults(), nil))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client := orgv1.NewOrgAnalysisServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]any{fieldMaxReportingDepth: 0})
	resp, err := client.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze RPC failed: %v", err)
	}

	fields := resp.GetFields()
	if got := fields["root"].GetStructValue().GetFields()["id"].GetStringValue(); got != "M000000001" {
		t.Fatalf("unexpected root: %s", got)
	}
	underpaid := fields["underpaid"].GetListValue().GetValues()
	if len(underpaid) != 1 || underpaid[0].GetStructValue().GetFields()["deviation"].GetStringValue() != "-30.00" {
		t.Fatalf("unexpected underpaid: %v", underpaid)
	}
	if got := len(fields["deep_reports"].GetListValue().GetValues()); got != 2 {
		t.Fatalf("expected both subordinates to exceed depth 0, got %d", got)
	}

	bad, _ := structpb.NewStruct(map[string]any{fieldMaxReportingDepth: 1000})
	if _, err := client.Analyze(ctx, bad); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument over the wire, got %v", err)
	}
}

package server

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/codex-org-analytics/internal/adapters/grpc/orgv1"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/config"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoAnalysis struct{}

func (echoAnalysis) Analyze(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, ok := req.GetFields()["fail"]; ok {
		return nil, status.Error(codes.FailedPrecondition, "broken hierarchy")
	}
	return structpb.NewStruct(map[string]any{"run_id": "run-1"})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_ServeRecordsLogsAndMetrics(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(out)

	m := metrics.New(nil)
	srv := New(config.ServerConfig{ListenAddr: "bufnet"}, echoAnalysis{}, logrus.NewEntry(logger), m)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	client := orgv1.NewOrgAnalysisServiceClient(conn)
	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	resp, err := client.Analyze(callCtx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.GetFields()["run_id"].GetStringValue() != "run-1" {
		t.Fatalf("unexpected response: %v", resp)
	}

	failReq, _ := structpb.NewStruct(map[string]any{"fail": true})
	if _, err := client.Analyze(callCtx, failReq); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(orgv1.AnalyzeFullMethod, "OK")); got != 1 {
		t.Errorf("OK requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(orgv1.AnalyzeFullMethod, "FailedPrecondition")); got != 1 {
		t.Errorf("FailedPrecondition requests = %v, want 1", got)
	}

	logs := out.String()
	if !strings.Contains(logs, "gRPC request handled") || !strings.Contains(logs, "gRPC request failed") {
		t.Errorf("expected request logs, got %q", logs)
	}

	_ = conn.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

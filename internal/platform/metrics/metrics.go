package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "org_analytics"

// 分析結果の種別ラベルです。
const (
	CategoryUnderpaid   = "underpaid"
	CategoryOverpaid    = "overpaid"
	CategoryDeepReports = "deep_reports"
)

// Metrics はサーバーが公開する Prometheus メトリクスです。
type Metrics struct {
	// RequestsTotal は gRPC メソッドとステータスコードごとのリクエスト数です。
	RequestsTotal *prometheus.CounterVec
	// RequestDuration は gRPC メソッドごとの処理時間です。
	RequestDuration *prometheus.HistogramVec
	// AnalysesTotal は分析の実行回数です。outcome は success か error です。
	AnalysesTotal *prometheus.CounterVec
	// FlaggedEmployees は直近の分析で検出された社員数です。
	FlaggedEmployees *prometheus.GaugeVec
	// EmployeesAnalyzed は直近の分析で読み込んだ社員数です。
	EmployeesAnalyzed prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New は reg に登録された Metrics を生成します。reg が nil の場合は専用のレジストリを作成します。
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total gRPC requests by method and status code",
		}, []string{"method", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "gRPC request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total organization analyses by outcome",
		}, []string{"outcome"}),
		FlaggedEmployees: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "flagged_employees",
			Help:      "Employees flagged by the latest analysis",
		}, []string{"category"}),
		EmployeesAnalyzed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "employees",
			Help:      "Employees loaded by the latest analysis",
		}),
		gatherer: reg,
	}
}

// ObserveAnalysis は分析 1 回分の結果を記録します。
func (m *Metrics) ObserveAnalysis(employees, underpaid, overpaid, deep int) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues("success").Inc()
	m.EmployeesAnalyzed.Set(float64(employees))
	m.FlaggedEmployees.WithLabelValues(CategoryUnderpaid).Set(float64(underpaid))
	m.FlaggedEmployees.WithLabelValues(CategoryOverpaid).Set(float64(overpaid))
	m.FlaggedEmployees.WithLabelValues(CategoryDeepReports).Set(float64(deep))
}

// ObserveAnalysisError は失敗した分析を記録します。
func (m *Metrics) ObserveAnalysisError() {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues("error").Inc()
}

// UnaryServerInterceptor はリクエスト数と処理時間を記録する gRPC インターセプターです。
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		m.RequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()

		return resp, err
	}
}

// Handler は /metrics 用の HTTP ハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

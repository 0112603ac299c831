package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ogurasousui/codex-org-analytics/internal/adapters/grpc/orgv1"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/config"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const shutdownTimeout = 10 * time.Second

// Server は gRPC サーバーと /metrics 用 HTTP サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr  string
	metricsAddr string
	grpcServer  *grpc.Server
	metrics     *metrics.Metrics
	logger      *logrus.Entry
}

// New は OrgAnalysisService を登録した gRPC サーバーを構築します。
// m が nil の場合はメトリクスを記録せず、/metrics も公開しません。
func New(cfg config.ServerConfig, analysis orgv1.OrgAnalysisServiceServer, logger *logrus.Entry, m *metrics.Metrics, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	interceptors := []grpc.UnaryServerInterceptor{loggingInterceptor(logger)}
	if m != nil {
		interceptors = append(interceptors, m.UnaryServerInterceptor())
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(interceptors...))

	srv := grpc.NewServer(opts...)
	orgv1.RegisterOrgAnalysisServiceServer(srv, analysis)

	metricsAddr := cfg.MetricsAddr
	if m == nil {
		metricsAddr = ""
	}

	return &Server{
		listenAddr:  cfg.ListenAddr,
		metricsAddr: metricsAddr,
		grpcServer:  srv,
		metrics:     m,
		logger:      logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は lis で gRPC を提供します。metrics_addr が設定されていれば /metrics も公開します。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", lis.Addr().String()).Info("gRPC server listening")
		if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	var httpSrv *http.Server
	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		httpSrv = &http.Server{Addr: s.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			s.logger.WithField("addr", s.metricsAddr).Info("metrics endpoint listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.grpcServer.GracefulStop()
		if httpSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown metrics: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

func loggingInterceptor(logger *logrus.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("gRPC request failed")
		} else {
			entry.Info("gRPC request handled")
		}

		return resp, err
	}
}

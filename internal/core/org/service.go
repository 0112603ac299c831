package org

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// UseCase は組織分析ユースケースの公開インターフェースです。
type UseCase interface {
	AnalyzeOrganization(ctx context.Context, in AnalyzeInput) (*Report, error)
}

// AnalyzeInput は分析時のパラメータです。
type AnalyzeInput struct {
	// BelowPercentage は部下平均に対するマネージャー給与の下限 (%) です。
	BelowPercentage decimal.Decimal
	// AbovePercentage は部下平均に対するマネージャー給与の上限 (%) です。
	AbovePercentage   decimal.Decimal
	MaxReportingDepth int
}

// Report は 1 回の分析結果です。
type Report struct {
	RunID         string
	GeneratedAt   time.Time
	Parameters    AnalyzeInput
	EmployeeCount int
	Root          *Employee
	Underpaid     []*Employee
	Overpaid      []*Employee
	Bands         []Band
	DeepReports   []*Employee
}

// Service は組織分析のユースケースをまとめます。
type Service struct {
	source Source
	clock  Clock
	tx     TransactionManager
}

// NewService は Service を生成します。
func NewService(source Source, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{source: source, clock: clock, tx: tx}
}

// AnalyzeOrganization は社員を読み込んで組織ツリーを構築し、給与レンジと階層の深さを分析します。
func (s *Service) AnalyzeOrganization(ctx context.Context, in AnalyzeInput) (*Report, error) {
	if err := validateAnalyzeInput(in); err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, fmt.Errorf("%w: employee source is not configured", ErrConfiguration)
	}

	var employees []*Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		loaded, err := s.source.ListAll(txCtx)
		if err != nil {
			return err
		}
		employees = loaded
		return nil
	}); err != nil {
		return nil, err
	}

	records, err := NewRecords(employees...)
	if err != nil {
		return nil, err
	}

	hierarchy, err := BuildHierarchy(records)
	if err != nil {
		return nil, err
	}

	var (
		bands *SalaryBands
		deep  []*Employee
		g     errgroup.Group
	)
	g.Go(func() error {
		result, err := AnalyzeSalaryBands(records, in.BelowPercentage, in.AbovePercentage)
		bands = result
		return err
	})
	g.Go(func() error {
		result, err := FindDeepReports(records, in.MaxReportingDepth)
		deep = result
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		RunID:         uuid.NewString(),
		GeneratedAt:   s.clock.Now(),
		Parameters:    in,
		EmployeeCount: records.Len(),
		Root:          hierarchy.Root(),
		Underpaid:     bands.Underpaid,
		Overpaid:      bands.Overpaid,
		Bands:         bands.Bands,
		DeepReports:   deep,
	}, nil
}

func validateAnalyzeInput(in AnalyzeInput) error {
	if in.BelowPercentage.IsNegative() || in.AbovePercentage.IsNegative() {
		return fmt.Errorf("%w: below=%s above=%s", ErrInvalidPercentage, in.BelowPercentage, in.AbovePercentage)
	}
	if in.MaxReportingDepth < 0 || in.MaxReportingDepth > MaxReportingDepthLimit {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, in.MaxReportingDepth)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/repository/csvfile"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	pg "github.com/ogurasousui/codex-org-analytics/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// percentageScale は閾値のパーセンテージを丸める桁数です。
const percentageScale = 2

type analyzeOptions struct {
	file     string
	fromDB   bool
	below    string
	above    string
	maxDepth int
}

func newAnalyzeCommand(c *cli) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report salary band violations and long reporting lines",
		Example: `  orgscan analyze --file employees.csv
  orgscan analyze --file employees.csv --below 20 --above 50 --max-depth 4
  orgscan analyze --from-db --config assets/local.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := opts.input(cmd, c)
			if err != nil {
				return c.fail("analyze", err)
			}
			if err := c.runAnalyze(cmd, opts, in); err != nil {
				return c.fail("analyze", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "employee CSV file (Id,firstName,lastName,salary,managerId)")
	cmd.Flags().BoolVar(&opts.fromDB, "from-db", false, "read employees from the configured database")
	cmd.Flags().StringVar(&opts.below, "below", "", "minimum manager salary above the subordinate average, in percent")
	cmd.Flags().StringVar(&opts.above, "above", "", "maximum manager salary above the subordinate average, in percent")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum number of managers between an employee and the CEO")
	cmd.MarkFlagsMutuallyExclusive("file", "from-db")
	cmd.MarkFlagsOneRequired("file", "from-db")

	return cmd
}

// input はフラグと設定ファイルから分析パラメータを決定します。フラグが優先されます。
func (o *analyzeOptions) input(cmd *cobra.Command, c *cli) (org.AnalyzeInput, error) {
	in := org.AnalyzeInput{
		BelowPercentage:   c.cfg.Analysis.BelowPercentage,
		AbovePercentage:   c.cfg.Analysis.AbovePercentage,
		MaxReportingDepth: c.cfg.Analysis.MaxReportingDepth,
	}

	if cmd.Flags().Changed("below") {
		pct, err := decimal.NewFromString(o.below)
		if err != nil {
			return in, fmt.Errorf("%w: --below %q", org.ErrConfiguration, o.below)
		}
		in.BelowPercentage = pct
	}
	if cmd.Flags().Changed("above") {
		pct, err := decimal.NewFromString(o.above)
		if err != nil {
			return in, fmt.Errorf("%w: --above %q", org.ErrConfiguration, o.above)
		}
		in.AbovePercentage = pct
	}
	if cmd.Flags().Changed("max-depth") {
		in.MaxReportingDepth = o.maxDepth
	}

	in.BelowPercentage = in.BelowPercentage.Round(percentageScale)
	in.AbovePercentage = in.AbovePercentage.Round(percentageScale)
	return in, nil
}

func (c *cli) runAnalyze(cmd *cobra.Command, opts *analyzeOptions, in org.AnalyzeInput) error {
	ctx := cmd.Context()
	logger := logging.Component(c.logger, "analyze")

	source, tx, closeFn, err := c.analysisSource(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	svc := org.NewService(source, nil, tx)
	report, err := svc.AnalyzeOrganization(ctx, in)
	if err != nil {
		var refErr *org.ReferenceError
		if errors.As(err, &refErr) {
			logger.WithFields(logrus.Fields{"employee_id": refErr.EmployeeID, "manager_id": refErr.ManagerID}).Warn("unresolved manager reference")
		}
		return err
	}

	logger.WithFields(logrus.Fields{
		"run_id":       report.RunID,
		"employees":    report.EmployeeCount,
		"underpaid":    len(report.Underpaid),
		"overpaid":     len(report.Overpaid),
		"deep_reports": len(report.DeepReports),
	}).Info("analysis finished")

	return writeReport(cmd.OutOrStdout(), report)
}

func (c *cli) analysisSource(ctx context.Context, opts *analyzeOptions, logger *logrus.Entry) (org.Source, org.TransactionManager, func(), error) {
	if !opts.fromDB {
		logger.WithField("file", opts.file).Debug("reading employees from file")
		return csvfile.NewEmployeeSource(c.fs, opts.file), nil, func() {}, nil
	}

	if !c.cfg.Database.Enabled() {
		return nil, nil, nil, fmt.Errorf("%w: --from-db requires database settings in --config", org.ErrConfiguration)
	}

	pool, err := pg.NewPool(ctx, c.cfg.Database,
		pg.WithQueryLogger(logging.Component(c.logger, "postgres"), tracelog.LogLevelDebug))
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewEmployeeRepository(pool), pg.NewTransactionManager(pool), pool.Close, nil
}

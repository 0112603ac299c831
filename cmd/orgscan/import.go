package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/repository/csvfile"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	pg "github.com/ogurasousui/codex-org-analytics/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newImportCommand(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Validate an employee CSV and replace the stored employees with it",
		Example: `  orgscan import --file employees.csv --config assets/local.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.Database.Enabled() {
				return c.fail("import", fmt.Errorf("%w: import requires database settings in --config", org.ErrConfiguration))
			}

			ctx := cmd.Context()
			pool, err := pg.NewPool(ctx, c.cfg.Database,
				pg.WithQueryLogger(logging.Component(c.logger, "postgres"), tracelog.LogLevelDebug))
			if err != nil {
				return c.fail("import", err)
			}
			defer pool.Close()

			importer := org.NewImporter(postgres.NewEmployeeRepository(pool), pg.NewTransactionManager(pool))
			result, err := importer.ImportEmployees(ctx, org.ImportInput{From: csvfile.NewEmployeeSource(c.fs, file)})
			if err != nil {
				return c.fail("import", err)
			}

			logging.Component(c.logger, "import").WithFields(logrus.Fields{
				"file":     file,
				"imported": result.Imported,
				"root_id":  result.RootID,
			}).Info("employees imported")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d employees (CEO %s)\n", result.Imported, result.RootID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "employee CSV file (Id,firstName,lastName,salary,managerId)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

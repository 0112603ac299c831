package main

import (
	"fmt"
	"os"

	"github.com/ogurasousui/codex-org-analytics/internal/platform/config"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// cli はサブコマンド間で共有する状態です。
type cli struct {
	fs         afero.Fs
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	c := &cli{fs: fs}

	root := &cobra.Command{
		Use:           "orgscan",
		Short:         "Analyze an organization's salary bands and reporting lines",
		Long:          `orgscan builds the management tree from an employee file or the database and reports managers paid outside their band and employees with overly long reporting lines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env when set)")

	root.AddCommand(newAnalyzeCommand(c), newImportCommand(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path == "" {
		c.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	c.logger = logging.New(c.cfg.Log, cmd.ErrOrStderr())
	return nil
}

// fail はエラーをログへ出力してからそのまま返します。
func (c *cli) fail(command string, err error) error {
	c.logger.WithField("command", command).WithError(err).Error("command failed")
	return fmt.Errorf("%s: %w", command, err)
}

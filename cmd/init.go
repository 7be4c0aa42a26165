package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

var initResetCursor bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run store migrations and seed default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))

		// Seed settings that do not exist yet; never overwrite operator
		// changes.
		defaults := model.DefaultIngestionSettings()
		seeds := []struct {
			key   string
			value any
		}{
			{model.SettingDailyQuota, defaults.DailyQuota},
			{model.SettingCooldownDays, defaults.CooldownDays},
			{model.SettingSkipRules, defaults.SkipFreeEmail},
			{model.SettingPageCursor, defaults.PageCursor},
		}
		for _, s := range seeds {
			var existing any
			found, err := st.GetSetting(ctx, s.key, &existing)
			if err != nil {
				return eris.Wrapf(err, "read setting %s", s.key)
			}
			if found {
				continue
			}
			if err := st.SetSetting(ctx, s.key, s.value); err != nil {
				return eris.Wrapf(err, "seed setting %s", s.key)
			}
			zap.L().Info("setting seeded", zap.String("key", s.key))
		}

		if initResetCursor {
			if err := st.SetSetting(ctx, model.SettingPageCursor, 1); err != nil {
				return eris.Wrap(err, "reset page cursor")
			}
			zap.L().Info("page cursor reset")
		}

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initResetCursor, "reset-cursor", false, "reset the discovery page cursor to the first page")
	rootCmd.AddCommand(initCmd)
}

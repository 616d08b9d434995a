package main

import (
	"RxDash/internal/config"
	"RxDash/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rxdash",
		Short:         "RxDash notification sync service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := zlog.Init(zlog.Options{
				LogPath:    conf.LogConfig.LogPath,
				Level:      conf.LogConfig.Level,
				MaxSizeMB:  conf.LogConfig.MaxSizeMB,
				MaxBackups: conf.LogConfig.MaxBackups,
				MaxAgeDays: conf.LogConfig.MaxAgeDays,
			}); err != nil {
				return err
			}
			defer zlog.Sync()
			return serve(cmd.Context(), conf)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to the TOML config file")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zlog.Fatal("rxdash exited", zap.Error(err))
	}
}

// Package cmd wires leakwatch's cobra commands, adapted from the
// teacher repository's root command layout.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillfen/leakwatch/cmd/leakdemo"
	"github.com/quillfen/leakwatch/internal/conf"
	"github.com/quillfen/leakwatch/internal/logging"
	"github.com/quillfen/leakwatch/leak"
)

// RootCommand creates the leakwatch root command.
func RootCommand() *cobra.Command {
	v := conf.New()

	rootCmd := &cobra.Command{
		Use:   "leakwatch",
		Short: "Sampling leak detector for reference-counted resources",
	}

	if err := setupFlags(rootCmd, v); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(leakdemo.Command(v))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Options{
			LogPath:    "logs/leakwatch.log",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Level:      slog.LevelInfo,
		})

		settings, err := conf.Load(v)
		if err != nil {
			return fmt.Errorf("resolving configuration: %w", err)
		}
		level, err := leak.ParseLevel(settings.Level)
		if err != nil {
			return fmt.Errorf("resolving leak detection level: %w", err)
		}
		leak.SetGlobalLevel(level)

		return nil
	}

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, v *viper.Viper) error {
	rootCmd.PersistentFlags().String("leak-level", v.GetString(conf.KeyLeakDetectionLevel),
		"Leak detection level: disabled, simple, advanced, or paranoid")
	rootCmd.PersistentFlags().Int("leak-target-records", v.GetInt(conf.KeyTargetRecords),
		"Number of access records to retain per tracked resource before back-off applies")

	if err := v.BindPFlag(conf.KeyLeakDetectionLevel, rootCmd.PersistentFlags().Lookup("leak-level")); err != nil {
		return fmt.Errorf("binding leak-level flag: %w", err)
	}
	if err := v.BindPFlag(conf.KeyTargetRecords, rootCmd.PersistentFlags().Lookup("leak-target-records")); err != nil {
		return fmt.Errorf("binding leak-target-records flag: %w", err)
	}
	return nil
}

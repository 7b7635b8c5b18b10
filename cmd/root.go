// Package cmd implements the studybuddy command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xiaot623/studybuddy/internal/config"
	"github.com/xiaot623/studybuddy/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "studybuddy",
	Short: "Deadline tracker chat service with reminders",
	Long: `StudyBuddy keeps track of assignment and exam deadlines through a chat
conversation and reminds students a day before each one is due.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		level, _ := observability.ParseLevel(loaded.LogLevel)
		observability.Setup(os.Stdout, level)
		cfg = loaded
		if f := viper.ConfigFileUsed(); f != "" {
			observability.Logger().Info("using config file", "file", f)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("database-url", "studybuddy.db", "SQLite database path")
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyDatabaseURL, rootCmd.PersistentFlags().Lookup("database-url"))

	rootCmd.AddCommand(serveCmd, scanCmd, chatCmd)
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devricklin/offline-responder/internal/conf"
)

const envPrefix = "RESPONDER"

// Execute runs the root command
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "responder",
		Short:         "Telegram auto-responder for when you are offline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cobra.OnInitialize(initConfig)

	flags := cmd.PersistentFlags()
	flags.String("home", "", "Data directory (default ~/.offline-responder)")
	flags.String("settings", "", "Settings YAML path")
	flags.Int("api-port", 0, "Control API port")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("debug", false, "Enable debug logging")
	for _, name := range []string{"home", "settings", "api-port", "log-level", "debug"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newOnlineCmd())
	cmd.AddCommand(newOfflineCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newPendingCmd())
	cmd.AddCommand(newClearPendingCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the environment, then applies flag overrides
func loadConfig() (*conf.Config, error) {
	cfg := conf.LoadFromEnv()

	if home := strings.TrimSpace(viper.GetString("home")); home != "" {
		cfg.SetHome(home)
	}
	if path := strings.TrimSpace(viper.GetString("settings")); path != "" {
		settings, err := conf.LoadSettings(path)
		if err != nil {
			return nil, err
		}
		cfg.Settings = settings
		cfg.SettingsErr = nil
	}
	if port := viper.GetInt("api-port"); port != 0 {
		cfg.API.Port = port
	}
	if level := strings.TrimSpace(viper.GetString("log-level")); level != "" {
		cfg.Log.Level = level
	}
	if viper.GetBool("debug") {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

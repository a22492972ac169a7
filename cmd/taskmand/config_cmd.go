package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskmand/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the taskmand configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := config.WriteSample(path); err != nil {
		return err
	}
	fmt.Printf("Wrote sample config to %s\n", path)
	fmt.Println("Set auth.secret_key before starting the daemon.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Printf("server.bind              = %s\n", cfg.Server.Bind)
	fmt.Printf("server.db_path           = %s\n", cfg.Server.DBPath)
	fmt.Printf("server.shutdown_grace    = %s\n", cfg.ShutdownGrace())
	fmt.Printf("auth.token_ttl           = %s\n", cfg.TokenTTL())
	fmt.Printf("auth.bcrypt_cost         = %d\n", cfg.Auth.BcryptCost)
	fmt.Printf("auth.secret_key          = %s\n", maskSecret(cfg.Auth.SecretKey))
	fmt.Printf("logging.level            = %s\n", cfg.Logging.Level)
	fmt.Printf("logging.file             = %s\n", cfg.Logging.File)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "********"
}

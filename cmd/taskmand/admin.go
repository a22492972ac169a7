package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskmand/internal/audit"
	"taskmand/internal/auth"
	"taskmand/internal/config"
	"taskmand/internal/logging"
	"taskmand/internal/store"
)

var (
	adminUsername string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin user directly in the database",
	Long:  `Writes an admin user straight into the task store. Run this once to bootstrap; the password is prompted when not given as a flag.`,
	RunE:  runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Username for the admin user (required)")
	createAdminCmd.Flags().StringVarP(&adminPassword, "password", "p", "", "Password for the admin user (prompted if omitted)")
	createAdminCmd.MarkFlagRequired("username")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	password := adminPassword
	if password == "" {
		password, err = promptPassword(true)
		if err != nil {
			return err
		}
	}

	st, err := store.New(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	aw := audit.NewWriter(st, logging.Discard())
	gate := auth.NewGate(st, aw, auth.Config{
		SecretKey:  cfg.Auth.SecretKey,
		TokenTTL:   cfg.TokenTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
	})

	admin, err := gate.CreateAdmin(adminUsername, password)
	if err != nil {
		return err
	}

	fmt.Printf("Admin user '%s' created successfully.\n", admin.Username)
	return nil
}

func promptPassword(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(first)) == "" {
		return "", fmt.Errorf("password must not be empty")
	}

	if confirm {
		fmt.Fprint(os.Stderr, "Repeat for confirmation: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	return string(first), nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskmand/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive task browser",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	token, err := loadToken()
	if err != nil || token == "" {
		return fmt.Errorf("not logged in; run 'taskmand login' first")
	}

	app := tui.New(apiAddr, token)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

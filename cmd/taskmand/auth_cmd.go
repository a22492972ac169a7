package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	authUsername string
	authPassword string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new user",
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the bearer token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the saved bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clearCredentials(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "Username (required)")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password (prompted if omitted)")
		c.MarkFlagRequired("username")
	}
}

func runRegister(cmd *cobra.Command, args []string) error {
	password := authPassword
	if password == "" {
		var err error
		password, err = promptPassword(true)
		if err != nil {
			return err
		}
	}

	resp, err := apiPost("/auth/register", map[string]string{
		"username": authUsername,
		"password": password,
	})
	if err != nil {
		return err
	}

	var result struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Registered user: %s\n", result.Username)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := authPassword
	if password == "" {
		var err error
		password, err = promptPassword(false)
		if err != nil {
			return err
		}
	}

	resp, err := apiPost("/auth/login", map[string]string{
		"username": authUsername,
		"password": password,
	})
	if err != nil {
		return err
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if err := saveCredentials(credentials{
		Username:    authUsername,
		AccessToken: result.AccessToken,
		SavedAt:     time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	fmt.Printf("Logged in as %s.\n", authUsername)
	return nil
}

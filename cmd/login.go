package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagLoginToken string

var loginCmd = &cobra.Command{
	Use:   "login <provider>",
	Short: "Store an auth token for a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&flagLoginToken, "token", "", "Auth token (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(_ *cobra.Command, args []string) error {
	p, err := parseProviderArg(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	token := flagLoginToken
	if token == "" {
		prompt := huh.NewInput().
			Title(fmt.Sprintf("%s auth token", p.DisplayName())).
			EchoMode(huh.EchoModePassword).
			Value(&token)
		if err := prompt.Run(); err != nil {
			return err
		}
	}
	if token == "" {
		return errors.New("no token provided")
	}

	client, ok := a.clients[p]
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
		defer cancel()
		if !client.ValidateToken(ctx, token) {
			return fmt.Errorf("token validation against %s failed", p.DisplayName())
		}
	}

	if !a.store.SaveToken(p, token) {
		return fmt.Errorf("saving token for %s failed", p.DisplayName())
	}

	fmt.Printf("  Logged in to %s\n", p.DisplayName())
	return nil
}

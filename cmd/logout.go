package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagLogoutYes bool

var logoutCmd = &cobra.Command{
	Use:   "logout <provider>",
	Short: "Delete a provider's stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

func init() {
	logoutCmd.Flags().BoolVarP(&flagLogoutYes, "yes", "y", false, "Skip confirmation")
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(_ *cobra.Command, args []string) error {
	p, err := parseProviderArg(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.store.HasToken(p) {
		fmt.Printf("  No stored token for %s\n", p.DisplayName())
		return nil
	}

	if !flagLogoutYes {
		confirmed := false
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("Delete the stored %s token?", p.DisplayName())).
			Value(&confirmed)
		if err := confirm.Run(); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
	}

	if !a.store.DeleteToken(p) {
		return fmt.Errorf("deleting token for %s failed", p.DisplayName())
	}

	fmt.Printf("  Logged out of %s\n", p.DisplayName())
	return nil
}

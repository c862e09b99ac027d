package cmd

import (
	"fmt"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/spf13/cobra"
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the wallets in the keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := wallet.NewKeystore(walletPath)
		if err != nil {
			return err
		}

		addresses := ks.Copy()
		for _, name := range ks.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, addresses[name])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

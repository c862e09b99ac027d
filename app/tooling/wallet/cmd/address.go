package cmd

import (
	"fmt"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/spf13/cobra"
)

// addressCmd represents the address command.
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := lookup()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), w.Address())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func lookup() (*wallet.Wallet, error) {
	ks, err := wallet.NewKeystore(walletPath)
	if err != nil {
		return nil, err
	}

	return ks.Lookup(walletName)
}

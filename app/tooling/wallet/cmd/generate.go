package cmd

import (
	"fmt"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new wallet in the keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := wallet.NewKeystore(walletPath)
		if err != nil {
			return err
		}

		w, err := ks.Generate(walletName)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", w.Name(), w.Address())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

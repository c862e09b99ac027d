// This program manages the wallets used by the loans service and drives the
// service's session from the command line.
package main

import (
	"github.com/ardanlabs/loans/app/tooling/wallet/cmd"
)

func main() {
	cmd.Execute()
}

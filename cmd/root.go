package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trangsucvn",
	Short: "Storefront orders and payments service",
	Long:  "Orders service for the trangsucvn storefront: checkout, VNPay payment callbacks, order reconciliation and admin order management.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

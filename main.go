// main.go
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "storefront",
	Short:        "Storefront API server",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var promoteEmail string

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin",
	Short: "Grant admin rights to a registered user",
	RunE:  runPromoteAdmin,
}

func init() {
	promoteAdminCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to promote")
	promoteAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(serveCmd, promoteAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

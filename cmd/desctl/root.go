// Package desctl provides the command-line interface for building and
// running simulations on top of the des package.
package desctl

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "desctl",
	Short: "desctl runs and inspects discrete-event simulations.",
	Long: `desctl runs and inspects discrete-event simulations built on the ` +
		`des package. Currently it supports running the bundled example ` +
		`models and reporting their termination.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cobra.CheckErr(err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

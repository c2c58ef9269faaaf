package cmd

import (
	"fmt"

	"github.com/datarobot-community/drdb-connect/internal/utils"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the drdbx version",
	Long:  "Prints the version of the drdbx CLI tool.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("drdbx version: %s\n", utils.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

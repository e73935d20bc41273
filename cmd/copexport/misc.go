package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dggs-stac-export/internal/archive"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/dggs"
)

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the DGGS identifiers offered for coverage queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range dggs.AvailableSystems() {
			fmt.Println(s)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE.zip",
	Short: "Check an export archive against its .sha256 digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := archive.Verify(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: OK\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(verifyCmd)
}

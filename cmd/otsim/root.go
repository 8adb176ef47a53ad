package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "otsim",
	Short: "OT process simulator with attack injection",
	Long: "otsim advances an industrial process model under closed-loop control\n" +
		"while scheduled attacks tamper with the controller's observed signals.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(plotCmd)
}

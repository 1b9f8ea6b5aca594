package cmd

import "github.com/spf13/cobra"

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Container image operations",
}

func init() {
	rootCmd.AddCommand(imageCmd)
}

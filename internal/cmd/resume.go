package cmd

import "github.com/spf13/cobra"

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage the stored last pages of paged collectors",
}

func init() {
	resumeCmd.AddCommand(resumeListCmd)
	resumeCmd.AddCommand(resumeResetCmd)
	rootCmd.AddCommand(resumeCmd)
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spigell/interview-coach/internal/interview"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the evaluation styles answers can be judged by",
	Run: func(cmd *cobra.Command, _ []string) {
		printPersonas(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}

func printPersonas(w io.Writer) {
	for _, info := range interview.Personas() {
		fmt.Fprintf(w, "%s (--persona %s)\n    %s\n", info.Name, info.Key, info.Description)
	}
}

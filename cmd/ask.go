package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a free-text question about the dataset (consulta_geral)",
	Long: `Ask translates the question into a query plan with the configured model,
runs the plan locally and prints the answer marked with [IA]. Only a profile of
the dataset (columns, ranges, top values) is sent to the model.`,
	Example: `  salesloom ask "qual a receita total por local em março?"
  salesloom ask --provider ollama --model llama3.1:8b "top 3 produtos por volume"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		reg, _, err := buildRegistry()
		if err != nil {
			return err
		}
		return invokeAndPrint(cmd, reg, "consulta_geral", map[string]any{"pergunta": question})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&runJSON, "json", false, "print the answer with its query plan as JSON")
}

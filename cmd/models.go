package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KaramelBytes/salesloom/internal/ai"
	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List translation providers and the models they default to",
	Example: `  salesloom models
  salesloom models --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		list := ai.Models()
		if modelsJSON {
			b, err := utils.PrettyJSON(list)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		active := ""
		if cfg != nil {
			active = cfg.Model()
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\t")
		for _, m := range list {
			mark := ""
			switch {
			case m.Name == active:
				mark = "active"
			case m.Name == ai.DefaultModel(m.Provider):
				mark = "default"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.Provider, m.Name, m.ContextTokens, mark)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if cfg != nil {
			fmt.Fprintf(out, "\nProvider in use: %s (registered: %v)\n", cfg.DefaultProvider, ai.Providers())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the model list as JSON")
}

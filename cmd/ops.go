package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/salesloom/internal/catalog"
	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/spf13/cobra"
)

var (
	opsJSON  bool
	opsTools bool
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operations of the analytics catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Listing needs no dataset.
		reg := catalog.New(nil, catalog.Config{})
		out := cmd.OutOrStdout()
		switch {
		case opsTools:
			b, err := utils.PrettyJSON(reg.ToolSpecs())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case opsJSON:
			b, err := utils.PrettyJSON(reg.Operations())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		default:
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tPARAMS\tDESCRIPTION")
			for _, op := range reg.Operations() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", op.Name, paramList(op.Params), op.Description)
			}
			return w.Flush()
		}
		return nil
	},
}

func paramList(params []catalog.Param) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		switch {
		case p.Required:
			parts = append(parts, p.Name+"*")
		case p.Default != nil:
			parts = append(parts, fmt.Sprintf("%s=%v", p.Name, p.Default))
		default:
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.Flags().BoolVar(&opsJSON, "json", false, "print the catalog as JSON")
	opsCmd.Flags().BoolVar(&opsTools, "tools", false, "print function-calling tool specs")
}

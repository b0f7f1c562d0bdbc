package cmd

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/salesloom/internal/catalog"
	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/spf13/cobra"
)

var runJSON bool

var runOpCmd = &cobra.Command{
	Use:   "run <operation> [key=value ...]",
	Short: "Invoke one catalog operation",
	Example: `  salesloom run identificar_ruptura_ou_excesso threshold=0.3
  salesloom run top_entidades group_by_col=local metric=actual_quantity top_n=3
  salesloom run vendas_por_periodo start_date=2024-03-01 end_date=2024-03-31 metric=volume --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		params, err := parseArgs(args[1:])
		if err != nil {
			return err
		}
		reg, _, err := buildRegistry()
		if err != nil {
			return err
		}
		return invokeAndPrint(cmd, reg, name, params)
	},
}

func invokeAndPrint(cmd *cobra.Command, reg *catalog.Registry, name string, params map[string]any) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}
	res, err := reg.Invoke(ctx, name, params)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out := cmd.OutOrStdout()
	if runJSON {
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	fmt.Fprintln(out, res.Text)
	return nil
}

func init() {
	rootCmd.AddCommand(runOpCmd)
	runOpCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result (id, data, text) as JSON")
}

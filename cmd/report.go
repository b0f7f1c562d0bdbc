package cmd

import (
	"fmt"

	"github.com/KaramelBytes/salesloom/internal/report"
	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/spf13/cobra"
)

var (
	reportTopN   int
	reportOutput string
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the executive report or write it to a PDF/HTML file",
	Example: `  salesloom report
  salesloom report --top-n 10
  salesloom report --output reports/march.pdf
  salesloom report --output reports/march.html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, t, err := buildRegistry()
		if err != nil {
			return err
		}
		topN := cfg.ReportTopN
		if cmd.Flags().Changed("top-n") {
			topN = reportTopN
		}
		if !reportJSON && reportOutput == "" {
			return invokeAndPrint(cmd, reg, "gerar_relatorio", map[string]any{"top_n": topN})
		}
		opt := reportOptions(cfg)
		opt.TopN = topN
		rep := report.ExecutiveReport(t, opt)
		if reportJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		// a local --output may point anywhere; only catalog callers are
		// confined to report_dir
		written, err := report.RendererFor(reportOutput).Render(rep.Text(), reportOutput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Report written to %s\n", written)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportTopN, "top-n", 0, "entries per ranking section (default report_top_n)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to a .pdf or .html file")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report sections as JSON")
}

package cmd

import (
	"fmt"

	"github.com/KaramelBytes/salesloom/internal/sales"
	"github.com/KaramelBytes/salesloom/internal/utils"
	"github.com/spf13/cobra"
)

var describeJSON bool

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Profile the dataset: columns, kinds, ranges and top values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable()
		if err != nil {
			return err
		}
		p := sales.Describe(t)
		if describeJSON {
			b, err := utils.PrettyJSON(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), p.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "print the profile as JSON")
}

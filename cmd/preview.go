package cmd

import (
	"fmt"
	"strings"

	"github.com/nconklindev/csvpipe/internal/converter"

	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Show which columns a conversion would rewrite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, _, closeLog, err := setup(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		data, err := converter.ReadFileData(args[0])
		if err != nil {
			return err
		}

		plan := converter.BuildPlan(data.Headers, rules)
		families := map[string][]int{
			"date":   plan.DateIdx,
			"amount": plan.AmountIdx,
			"quoted": plan.QuoteIdx,
		}

		out := cmd.OutOrStdout()
		if data.HeaderRow > 0 {
			fmt.Fprintf(out, "header found on row %d\n", data.HeaderRow+1)
		}
		fmt.Fprintln(out, converter.HeaderLine(data.Headers, rules))
		for _, family := range []string{"date", "amount", "quoted"} {
			var names []string
			for _, i := range families[family] {
				names = append(names, data.Headers[i])
			}
			if len(names) == 0 {
				names = []string{"-"}
			}
			fmt.Fprintf(out, "%-7s %s\n", family+":", strings.Join(names, ", "))
		}

		for i, row := range data.Rows {
			converter.TransformRow(row, plan, rules)
			fmt.Fprintln(out, converter.RowLine(i+1, row, rules))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}

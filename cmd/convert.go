package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/nconklindev/csvpipe/internal/config"
	"github.com/nconklindev/csvpipe/internal/converter"

	"github.com/spf13/cobra"
)

var convertUnique bool

var convertCmd = &cobra.Command{
	Use:   "convert FILE...",
	Short: "Convert files without the interactive picker",
	Long: `Convert each FILE and print where the result was saved. Files are handled
one after another; a failure is reported and the next file is still tried.
The command exits non-zero if any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().BoolVar(&convertUnique, "unique", false,
		"never replace an existing output, add a _2, _3... suffix instead")
}

func runConvert(cmd *cobra.Command, files []string) error {
	rules, logger, closeLog, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	if convertUnique {
		rules.OnCollision = config.CollisionUnique
	}

	conv := converter.New(rules, logger)
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	failed := 0
	for _, file := range files {
		if err := converter.CheckSupported(file); err != nil {
			logger.Error("skipped", "file", file, "err", err)
			fmt.Fprintf(errOut, "Failed to process %s: %v\n", file, err)
			failed++
			continue
		}

		result, err := conv.Convert(file, nil)
		if err != nil {
			fmt.Fprintf(errOut, "Failed to process %s: %v\n", file, err)
			failed++
			continue
		}

		fmt.Fprintf(out, "Saved as %s in folder %s\n",
			filepath.Base(result.OutputFile), filepath.Dir(result.OutputFile))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
	}
	return nil
}

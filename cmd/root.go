// Package cmd holds the csvpipe command tree.
//
//	csvpipe [FILE]           interactive picker, or straight to FILE
//	csvpipe convert FILE...  headless conversion
//	csvpipe preview FILE     show what a conversion would rewrite
//	csvpipe version
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/nconklindev/csvpipe/internal/config"
	"github.com/nconklindev/csvpipe/internal/converter"
	"github.com/nconklindev/csvpipe/internal/logging"
	"github.com/nconklindev/csvpipe/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	rulesFile string
	logLevel  string
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "csvpipe [FILE]",
	Short: "Convert CSV exports into numbered, pipe-delimited files",
	Long: `csvpipe rewrites a CSV (or the first sheet of an XLSX workbook) into a
pipe-delimited file next to the input, named {name}_{DD-MM-YYYY_HH-MM-SS}.csv.

Every row is numbered in a leading LP column, dates get dots instead of
dashes, amounts lose their spaces and gain ",00" when they have no decimal
part, and identifier columns are wrapped in double quotes.

Without a subcommand an interactive file picker is started.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var startFile string
		if len(args) == 1 {
			startFile = args[0]
		}
		return runTUI(startFile)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "YAML file overriding the column rules")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides the rules file)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append log entries to this file")
}

// setup loads the rules and opens the logger. Entries go to fallback unless
// --log-file is given.
func setup(fallback io.Writer) (*config.Rules, *log.Logger, func() error, error) {
	rules, err := config.Load(rulesFile)
	if err != nil {
		return nil, nil, nil, err
	}

	level := rules.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	logger, closeLog, err := logging.Open(logFile, level, fallback)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return rules, logger, closeLog, nil
}

func runTUI(startFile string) error {
	// The alternate screen owns the terminal, so only a log file is written.
	rules, logger, closeLog, err := setup(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	conv := converter.New(rules, logger)
	p := tea.NewProgram(ui.InitialModel(conv, rules, startFile), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

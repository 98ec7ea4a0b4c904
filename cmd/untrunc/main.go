// Package main provides the untrunc CLI for repairing damaged ISO BMFF
// (MP4/MOV/M4V/3GP) files against a known-good reference.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/mycophonic/untrunc/version"
)

// exit codes per the CLI surface: 0 success, 1 repair failure, 2 bad args.
const (
	exitFailure = 1
	exitBadArgs = 2
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:      version.Name(),
		Usage:     "Repair a damaged MP4/MOV file against a known-good reference",
		ArgsUsage: "<reference_file> [<damaged_file>]",
		Version:   version.Version() + " (" + version.Commit() + " - " + version.Date() + ")",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "info",
				Aliases: []string{"i"},
				Usage:   "print the box tree and track summary for the reference file, then exit",
			},
			&cli.BoolFlag{
				Name:    "analyze",
				Aliases: []string{"a"},
				Usage:   "open the interactive box-tree analyzer for the reference file",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "silence all logging",
			},
			&cli.IntFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Value:   0,
				Usage:   "increase log verbosity, 0-8",
			},
			&cli.BoolFlag{
				Name:  "exhaustive",
				Usage: "fall back to a byte-by-byte search when no track recognizes the next offset",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "output file path; default is <damaged_file>_fixed.mp4",
			},
		},
		Commands: []*cli.Command{
			relocateCommand(),
		},
		Action: run,
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)

		if ce, ok := err.(cli.ExitCoder); ok { //nolint:errorlint // ExitCoder is the library's own dispatch interface
			os.Exit(ce.ExitCode())
		}

		os.Exit(exitFailure)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 || cmd.NArg() > 2 {
		return cli.Exit(fmt.Sprintf("expected 1 or 2 positional arguments, got %d", cmd.NArg()), exitBadArgs)
	}

	reference := cmd.Args().Get(0)

	log := buildLogger(cmd)

	if cmd.Bool("info") {
		return printInfo(reference)
	}

	if cmd.Bool("analyze") {
		return runAnalyzer(ctx, reference, log)
	}

	if cmd.NArg() != 2 {
		return cli.Exit("repairing requires both <reference_file> and <damaged_file>", exitBadArgs)
	}

	damaged := cmd.Args().Get(1)
	output := cmd.String("output")
	if output == "" {
		output = damaged + "_fixed.mp4"
	}

	if err := runRepair(cmd, reference, damaged, output, log); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	return nil
}

// buildLogger wires rs/zerolog to a ConsoleWriter gated by isatty, exactly
// the way a CLI built against a terminal normally does: colorized when
// stderr is a real terminal (via go-colorable on Windows), plain otherwise.
func buildLogger(cmd *cli.Command) zerolog.Logger {
	if cmd.Bool("quiet") {
		return zerolog.Nop()
	}

	out := colorable.NewColorableStderr()

	writer := zerolog.ConsoleWriter{Out: out, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}

	level := clampVerbosity(cmd.Int("verbose"))

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// clampVerbosity maps -v[N], N in [0,8], onto zerolog's Info..Trace
// levels: 0 is Info (the default), 1 is Debug, anything higher is Trace.
func clampVerbosity(n int) zerolog.Level {
	switch {
	case n <= 0:
		return zerolog.InfoLevel
	case n == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

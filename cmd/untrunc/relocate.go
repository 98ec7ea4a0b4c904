package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mycophonic/untrunc/internal/relocate"
)

// relocateCommand exposes internal/relocate.MakeStreamable as its own
// subcommand, the way the teacher's cmd/saprobe/main.go registers
// decodeCommand() alongside its root action: moving moov ahead of mdat
// is unrelated to repair, so it gets a name of its own rather than
// another top-level flag on the repair command.
func relocateCommand() *cli.Command {
	return &cli.Command{
		Name:      "relocate",
		Usage:     "move moov ahead of mdat so playback can start before the file finishes downloading",
		ArgsUsage: "<input_file> <output_file>",
		Action:    runRelocate,
	}
}

func runRelocate(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return cli.Exit(fmt.Sprintf("expected <input_file> <output_file>, got %d arguments", cmd.NArg()), exitBadArgs)
	}

	input := cmd.Args().Get(0)
	output := cmd.Args().Get(1)

	if err := relocate.MakeStreamable(input, output); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	return nil
}

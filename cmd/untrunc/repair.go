package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/mycophonic/untrunc/codec"
	"github.com/mycophonic/untrunc/repair"
)

func runRepair(cmd *cli.Command, reference, damaged, output string, log zerolog.Logger) error {
	opts := repair.Options{
		ExhaustiveScan: cmd.Bool("exhaustive"),
		Logger:         &log,
		AVC1:           codec.AVC1Options{},
	}

	if err := repair.New(opts).Run(reference, damaged, output); err != nil {
		return fmt.Errorf("repairing %s against %s: %w", damaged, reference, err)
	}

	fmt.Printf("wrote %s\n", output)

	return nil
}

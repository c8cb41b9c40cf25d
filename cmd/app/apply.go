package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/patchwork/internal"
	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/checksum"
	"github.com/starford/patchwork/internal/descriptor"
	"github.com/starford/patchwork/internal/patchservice"
)

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Replace an exact block of text in one file",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Target file, relative to the workspace root"},
			&cli.StringFlag{Name: "old", Usage: "Block to replace; @file reads it from a file"},
			&cli.StringFlag{Name: "new", Usage: "Replacement block, must differ from --old; @file reads it from a file"},
			&cli.StringFlag{Name: "descriptor", Aliases: []string{"f"}, Usage: "YAML or JSON patch descriptor (- for stdin)"},
			&cli.StringFlag{Name: "occurrence", Usage: "unique, first or a positive integer"},
			&cli.StringFlag{Name: "expect-checksum", Usage: "SHA-256 the target must have before patching"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Print a preview instead of writing"},
		},
		Action: runApply,
	}
}

func runApply(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := descriptorFromFlags(cmd, os.Stdin)
	if err != nil {
		return err
	}
	spec, err := d.Spec(cfg.Patch.Occurrence)
	if err != nil {
		return err
	}

	stack, err := internal.NewStack(cfg, internal.NewLogger(cfg.App.LogLevel))
	if err != nil {
		return err
	}
	defer stack.Close()

	out, err := stack.Service.Apply(ctx, spec, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	printOutcome(os.Stdout, out)
	return nil
}

// descriptorFromFlags builds a descriptor from --descriptor or from the
// individual flags. Explicit --occurrence and --expect-checksum override
// the descriptor's values.
func descriptorFromFlags(cmd *cli.Command, stdin io.Reader) (*descriptor.Descriptor, error) {
	var d *descriptor.Descriptor

	switch src := cmd.String("descriptor"); {
	case src != "" && (cmd.IsSet("path") || cmd.IsSet("old") || cmd.IsSet("new")):
		return nil, fmt.Errorf("--descriptor cannot be combined with --path, --old or --new: %w", apperr.ErrInvalidPatch)
	case src == "-":
		parsed, err := descriptor.Decode(stdin)
		if err != nil {
			return nil, err
		}
		d = parsed
	case src != "":
		parsed, err := descriptor.ReadFile(src)
		if err != nil {
			return nil, err
		}
		d = parsed
	default:
		oldBlock, err := readPayload(cmd.String("old"))
		if err != nil {
			return nil, err
		}
		newBlock, err := readPayload(cmd.String("new"))
		if err != nil {
			return nil, err
		}
		d = &descriptor.Descriptor{Path: cmd.String("path"), Old: oldBlock, New: newBlock}
	}

	if cmd.IsSet("occurrence") {
		d.Occurrence = cmd.String("occurrence")
	}
	if cmd.IsSet("expect-checksum") {
		d.ExpectChecksum = cmd.String("expect-checksum")
	}
	return d, nil
}

// readPayload returns v, or the content of the file it names when v starts
// with "@". A leading "@@" stands for a literal "@".
func readPayload(v string) (string, error) {
	switch {
	case strings.HasPrefix(v, "@@"):
		return v[1:], nil
	case strings.HasPrefix(v, "@"):
		data, err := os.ReadFile(v[1:])
		if err != nil {
			return "", fmt.Errorf("read %s: %v: %w", v[1:], err, apperr.ErrInvalidPatch)
		}
		return string(data), nil
	default:
		return v, nil
	}
}

func printOutcome(w io.Writer, out *patchservice.Outcome) {
	res := out.Result
	if out.DryRun {
		printDiff(w, out.Diff)
		fmt.Fprintf(w, "dry run: %s not written (%d -> %d bytes)\n", res.Path, res.BytesBefore, res.BytesAfter)
		return
	}
	color.New(color.FgGreen).Fprintf(w, "patched %s", res.Path)
	fmt.Fprintf(w, " at offset %d (%d -> %d bytes, sha256 %s)\n",
		res.Offset, res.BytesBefore, res.BytesAfter, checksum.Short(res.ChecksumAfter))
}

func printDiff(w io.Writer, diff string) {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			bold.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			cyan.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			red.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			green.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/nerrad567/gray-logic-compat/internal/export"
)

func exportCmd() *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var (
		lf          loadFlags
		sf          selectFlags
		output      string
		title       string
		columnsFile string
	)
	lf.register(fs)
	sf.register(fs)
	fs.StringVarP(&output, "output", "o", "", "workbook path to write (required)")
	fs.StringVar(&title, "title", "", "title row (default \""+export.DefaultTitle+"\")")
	fs.StringVar(&columnsFile, "columns-file", "", "JSON (comments allowed) file with the column tree")

	return &Command{
		Flags: fs,
		Usage: "export -o <file.xlsx> [flags]",
		Short: "Write the selected rows to an xlsx workbook",
		Long: "Load the catalogue, select every row matching the search and filters and\n" +
			"write them to a workbook. The file is replaced atomically.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			sel, err := sf.input()
			if err != nil {
				return err
			}
			spec := export.Spec{SelectInput: sel, Title: title}
			if columnsFile != "" {
				if spec.Columns, err = readColumns(columnsFile); err != nil {
					return err
				}
				if err := export.Validate(spec.Columns); err != nil {
					return err
				}
			}

			eng, _, err := lf.load(ctx, o)
			if err != nil {
				return err
			}
			rows, _, err := eng.Select(spec.SelectInput)
			if err != nil {
				return err
			}
			data, err := export.Build(rows, spec, "")
			if err != nil {
				return err
			}
			if err := atomic.WriteFile(output, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}

			o.Printf("wrote %d rows to %s\n", len(rows), output)
			return nil
		},
	}
}

// readColumns parses an export column tree. The file may carry comments
// and trailing commas.
func readColumns(path string) ([]export.Column, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading columns file: %w", err)
	}
	data, err = hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var cols []export.Column
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cols, nil
}

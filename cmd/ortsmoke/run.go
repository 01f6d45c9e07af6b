package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/example/go-ort-smoke/internal/smoke"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the model, run one forward pass and check all tensor shapes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts, err := smoke.FromConfig(cfg)
			if err != nil {
				return err
			}

			return runSmoke(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runSmoke(ctx context.Context, opts smoke.Options, w io.Writer) error {
	report, err := smoke.Run(ctx, opts)
	if err != nil {
		return err
	}

	printReport(w, report)

	return nil
}

func printReport(w io.Writer, r smoke.Report) {
	_, _ = fmt.Fprintf(w, "model:    %s\n", r.Model)
	_, _ = fmt.Fprintf(w, "backend:  %s\n", r.Backend)
	_, _ = fmt.Fprintf(w, "opset:    %d\n", r.Opset)
	_, _ = fmt.Fprintf(w, "run id:   %s\n", r.RunID)
	_, _ = fmt.Fprintf(w, "duration: %s\n\n", r.Duration)

	var data [][]string

	appendRows := func(role string, tensors []smoke.TensorReport) {
		for i, t := range tensors {
			data = append(data, []string{
				role + " " + strconv.Itoa(i),
				t.Name,
				t.Declared,
				t.Shape.String(),
				strconv.Itoa(t.Elements),
			})
		}
	}

	appendRows("input", r.Inputs)
	appendRows("output", r.Outputs)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TENSOR", "NAME", "DECLARED", "SHAPE", "ELEMENTS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	_, _ = fmt.Fprintln(w, "\nall tensor shapes match")
}

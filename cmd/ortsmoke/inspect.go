package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [model.onnx]",
		Short: "Print the declared inputs and outputs of a model without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := cfg.Paths.ModelPath
			if len(args) == 1 {
				path = args[0]
			}

			if strings.TrimSpace(path) == "" {
				return errors.New("no model given: pass a path or set --model")
			}

			desc, err := onnx.ReadDescriptor(path)
			if err != nil {
				return err
			}

			printDescriptor(cmd.OutOrStdout(), desc)

			if err := desc.Validate(); err != nil {
				return fmt.Errorf("model %s cannot be run: %w", path, err)
			}

			return nil
		},
	}
}

func printDescriptor(w io.Writer, d *onnx.ModelDescriptor) {
	_, _ = fmt.Fprintf(w, "model:      %s\n", d.Path)
	_, _ = fmt.Fprintf(w, "graph:      %s\n", d.GraphName)
	_, _ = fmt.Fprintf(w, "producer:   %s\n", d.Producer)
	_, _ = fmt.Fprintf(w, "ir version: %d\n", d.IRVersion)

	for _, o := range d.Opsets() {
		domain := o.Domain
		if domain == "" {
			domain = "ai.onnx"
		}

		_, _ = fmt.Fprintf(w, "opset:      %s %d\n", domain, o.Version)
	}

	_, _ = fmt.Fprintln(w)

	var data [][]string

	appendRows := func(role string, nodes []onnx.NodeInfo) {
		for i, n := range nodes {
			data = append(data, []string{role, strconv.Itoa(i), n.Name, n.ElemType.String(), n.DimString()})
		}
	}

	appendRows("input", d.Inputs())
	appendRows("output", d.Outputs())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ROLE", "INDEX", "NAME", "TYPE", "SHAPE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

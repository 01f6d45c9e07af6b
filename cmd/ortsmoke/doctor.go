package main

import (
	"errors"
	"fmt"

	"github.com/example/go-ort-smoke/internal/doctor"
	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/smoke"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			contract, err := smoke.ParseContract(cfg.Contract.Inputs, cfg.Contract.Outputs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			dcfg := doctor.Config{
				Runtime: func() (onnx.RuntimeInfo, error) {
					return onnx.DetectRuntime(cfg.Runtime)
				},
				APIVersion: cfg.Runtime.ORTAPIVersion,
				Backend:    cfg.Environment.Backend,
				ModelPath:  cfg.Paths.ModelPath,
				Contract:   contract,
			}

			result := doctor.Run(dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					_, _ = fmt.Fprintf(errOut, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/hitag2-gnd/internal/schedule"
	"github.com/mahdiidarabi/hitag2-gnd/pkg/hitag2"
)

func newMasksCmd() *cobra.Command {
	var (
		threshold int
		layers    int
		asYAML    bool
	)
	cmd := &cobra.Command{
		Use:   "masks",
		Short: "Print the guessing schedule derived from the HiTag2 filter taps",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schedule.Generate(hitag2.FilterTaps(), threshold, layers)
			if err != nil {
				return err
			}
			if err := schedule.Check(s); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(s); err != nil {
					return err
				}
				return enc.Close()
			}

			bits := s.Bits()
			total := s.Threshold
			for l, m := range s.Masks {
				mode := "branch"
				if l >= s.Threshold {
					mode = "shift"
				}
				fmt.Fprintf(w, "layer %2d  mask %012x  bits %2d  %s\n", l, m, bits[l], mode)
				total += bits[l]
			}
			fmt.Fprintf(w, "threshold %d, %d bits hypothesized\n", s.Threshold, total)
			return nil
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", schedule.DefaultThreshold, "layer from which the register is fully determined")
	cmd.Flags().IntVar(&layers, "layers", schedule.DefaultLayers, "number of layers")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print as YAML, ready for a job file")
	return cmd
}

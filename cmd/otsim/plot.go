package main

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"otsim/internal/store"
)

var plotSignal string

var plotCmd = &cobra.Command{
	Use:   "plot [export.json]",
	Short: "Plot an exported run",
	Args:  cobra.ExactArgs(1),
	RunE:  plotRun,
}

func init() {
	plotCmd.Flags().StringVar(&plotSignal, "signal", "", "signal to plot (default: first)")
}

func plotRun(cmd *cobra.Command, args []string) error {
	exp, err := store.LoadJSON(args[0])
	if err != nil {
		return err
	}
	if len(exp.Frames) == 0 {
		return fmt.Errorf("export %s holds no frames", args[0])
	}

	names := exp.Frames[0].Real.Names()
	signal := plotSignal
	if signal == "" {
		signal = names[0]
	}
	if _, ok := exp.Frames[0].Real[signal]; !ok {
		return fmt.Errorf("unknown signal %q; model produces: %s", signal, strings.Join(names, ", "))
	}

	real := make([]float64, len(exp.Frames))
	observed := make([]float64, len(exp.Frames))
	for i, f := range exp.Frames {
		real[i] = f.Real[signal]
		observed[i] = f.Observed[signal]
	}

	graph := asciigraph.PlotMany(
		[][]float64{real, observed},
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Green, asciigraph.Red),
		asciigraph.Caption(fmt.Sprintf("%s / %s (dt=%g, green=real, red=observed)", exp.Model, signal, exp.Dt)),
	)
	fmt.Println(graph)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tissueoptics/nirmc/pkg/tissue"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the built-in tissue models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, m := range tissue.Presets() {
			fmt.Printf("%s (%d layers)\n", m.Name, len(m.Layers))
			for _, l := range m.Layers {
				fmt.Printf("  %-18s n=%.3f  mua=%.4f/cm  mus=%.2f/cm  g=%.2f  d=%.3f cm\n",
					l.Name, l.N, l.MuA, l.MuS, l.G, l.Thickness)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

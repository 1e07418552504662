package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nirmc",
	Short: "nirmc simulates near-infrared photon transport in layered tissue",
	Long: `nirmc runs Monte Carlo simulations of near-infrared light through
planar tissue models, reports where the energy went, and checks the
spatial reflectance against candidate probability distributions.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

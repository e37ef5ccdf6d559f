package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "chip",
	Short: "Step sequencer server",
	Long: `chip runs a step sequencer: a flat 16-step grid or a 32x16 piano roll,
played at a tempo-derived cadence and streamed to the browser.`,
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

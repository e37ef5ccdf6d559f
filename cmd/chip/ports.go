package main

import (
	"fmt"

	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/10happee/chip/internal/midiout"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Lists MIDI output ports",
	Run: func(cmd *cobra.Command, args []string) {
		defer midiout.Close()
		ports := midiout.Ports()
		if len(ports) == 0 {
			fmt.Println("no MIDI output ports")
			return
		}
		for i, name := range ports {
			fmt.Printf("%d: %s\n", i, name)
		}
	},
}

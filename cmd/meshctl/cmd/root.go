package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "meshctl",
	Short: "Terminal client for the room relay",
	Long: `meshctl joins chat rooms on a room relay server, prints the room's
history and live messages, and negotiates direct peer links with the other
members over the relay's signaling channel.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "relay server base URL")
}

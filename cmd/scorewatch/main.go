package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host    string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "scorewatch",
	Short: "Follow the live scoreboard from a terminal",
	Long: `scorewatch connects to a scoreboard server and prints the active match
every time it changes, reconnecting on its own when the connection drops.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log connection state changes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

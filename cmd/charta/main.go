// Charta is the terminal chat client for chartad.
//
// It sends the running conversation to the daemon, renders the answer
// incrementally as delta frames arrive, and supports aborting an in-flight
// answer with esc.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chartalabs/chartad/internal/client"
)

func main() {
	var serverURL string

	rootCmd := &cobra.Command{
		Use:   "charta",
		Short: "Chat with your constitution from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newModel(client.New(serverURL)), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8787", "chartad server URL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

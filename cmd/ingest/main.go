package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "OSINT ingestion service: source adapters, processing sweep, and the recurring scheduler",
	}
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newSchedulerCmd())
	cmd.AddCommand(newRunOnceCmd())
	return cmd
}

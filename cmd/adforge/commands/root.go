// Package commands implements the adforge command line client.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	flagServer = "server"
	envServer  = "ADFORGE_SERVER"

	defaultServer = "http://localhost:8080"
)

// NewRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adforge",
		Short:         "Generate and inspect ad creatives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(flagServer, defaultServer, "adforge API address (env: "+envServer+")")

	root.AddCommand(newWinnersCmd())
	root.AddCommand(newFormatsCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newSubmitCmd())
	return root
}

// serverAddress resolves flag, then environment, then default.
func serverAddress(cmd *cobra.Command) (string, error) {
	addr, _ := cmd.Flags().GetString(flagServer)
	if !cmd.Flags().Changed(flagServer) {
		if env := strings.TrimSpace(os.Getenv(envServer)); env != "" {
			addr = env
		}
	}
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" {
		return "", fmt.Errorf("server address cannot be empty")
	}
	return addr, nil
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}

// readInput reads path, or stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// cmd_serve.go - Server-Start und Versionsanzeige
// Hauptfunktionen: RunServer, checkServerHeartbeat, versionHandler
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/server"
	"github.com/7blacky7/stylegan/version"
)

// RunServer - Startet den stylegan-Server
func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// checkServerHeartbeat - Prueft ob der Server laeuft
func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		if strings.Contains(err.Error(), " refused") || strings.Contains(err.Error(), "could not connect") {
			return fmt.Errorf("stylegan server not responding at %s, start it with 'stylegan serve'", envconfig.Host())
		}
		return err
	}
	return nil
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running stylegan instance")
	}

	if serverVersion != "" {
		fmt.Printf("stylegan version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the stylegan server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}

// cmd_list.go - List und PS Commands
// Hauptfunktionen: ListHandler, ListRunningHandler
package cmd

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/format"
)

// newTable - Tabelle im Stil der uebrigen Ausgaben
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoFormatHeaders(false)
	return table
}

// roles - Kurzbeschreibung der enthaltenen Netze
func roles(d api.ModelDetails) string {
	var parts []string
	if d.Generator {
		parts = append(parts, "G")
	}
	if d.Discriminator {
		parts = append(parts, "D")
	}
	return strings.Join(parts, "+")
}

// ListHandler - Listet alle Checkpoints im Models-Verzeichnis auf
func ListHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	models, err := client.List(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range models.Models {
		if len(args) == 0 || strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(args[0])) {
			data = append(data, []string{
				m.Name,
				m.Details.Architecture,
				strconv.Itoa(m.Details.Resolution),
				roles(m.Details),
				format.HumanBytes(m.Size),
				format.HumanTime(m.ModifiedAt, "Never"),
			})
		}
	}

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "SIZE", "NETS", "FILE SIZE", "MODIFIED"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// ListRunningHandler - Listet alle geladenen Modelle auf
func ListRunningHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	models, err := client.ListRunning(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string
	for _, m := range models.Models {
		if len(args) == 0 || strings.HasPrefix(m.Name, args[0]) {
			var until string
			if delta := time.Since(m.ExpiresAt); delta > 0 && !m.ExpiresAt.IsZero() {
				until = "Stopping..."
			} else {
				until = format.HumanTime(m.ExpiresAt, "Forever")
			}

			data = append(data, []string{m.Name, m.Details.Architecture, m.Details.ParameterSize, until})
		}
	}

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "PARAMETERS", "UNTIL"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newListCmd - Erstellt den list Command
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List models",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ListHandler,
	}
}

// newPsCmd - Erstellt den ps Command
func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ps [PREFIX]",
		Short:   "List loaded models",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ListRunningHandler,
	}
}

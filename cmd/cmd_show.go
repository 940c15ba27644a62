// cmd_show.go - Show Command fuer Checkpoint-Informationen
// Hauptfunktionen: ShowHandler, showInfo
package cmd

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/format"
)

// ShowHandler - Zeigt Details eines Checkpoints an
func ShowHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	resp, err := client.Show(cmd.Context(), &api.ShowRequest{Model: args[0], Verbose: verbose})
	if err != nil {
		return err
	}

	return showInfo(resp, verbose, cmd.OutOrStdout())
}

// showInfo - Gibt Details, Hyperparameter und optional Tensoren als Tabellen aus
func showInfo(resp *api.ShowResponse, verbose bool, w io.Writer) error {
	tableRender := func(header string, rows func() [][]string) {
		fmt.Fprintln(w, " ", header)
		table := newTable(w, nil)
		table.SetTablePadding("    ")
		table.SetNoWhiteSpace(false)
		table.AppendBulk(rows())
		table.Render()
		fmt.Fprintln(w)
	}

	tableRender("Model", func() (rows [][]string) {
		d := resp.Details
		rows = append(rows, []string{"", "architecture", d.Architecture})
		if d.ParameterSize != "" {
			rows = append(rows, []string{"", "parameters", d.ParameterSize})
		}
		if d.Resolution > 0 {
			rows = append(rows, []string{"", "resolution", strconv.Itoa(d.Resolution)})
		}
		rows = append(rows, []string{"", "networks", roles(d)})
		if d.FileType != "" {
			rows = append(rows, []string{"", "file type", d.FileType})
		}
		rows = append(rows, []string{"", "modified", format.HumanTime(resp.ModifiedAt, "Never")})
		return
	})

	if len(resp.ModelInfo) > 0 {
		tableRender("Metadata", func() (rows [][]string) {
			keys := make([]string, 0, len(resp.ModelInfo))
			for k := range resp.ModelInfo {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			for _, k := range keys {
				rows = append(rows, []string{"", k, formatValue(resp.ModelInfo[k])})
			}
			return
		})
	}

	if verbose && len(resp.Tensors) > 0 {
		tableRender("Tensors", func() (rows [][]string) {
			for _, t := range resp.Tensors {
				shape := make([]string, len(t.Shape))
				for i, s := range t.Shape {
					shape[i] = strconv.Itoa(s)
				}
				rows = append(rows, []string{"", t.Name, t.Type, "[" + strings.Join(shape, " ") + "]"})
			}
			return
		})
	}

	return nil
}

// formatValue - Kurzdarstellung eines KV-Werts
func formatValue(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:     "show MODEL",
		Short:   "Show information for a model",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ShowHandler,
	}

	showCmd.Flags().BoolP("verbose", "v", false, "Show hyperparameter arrays and all tensors")

	return showCmd
}

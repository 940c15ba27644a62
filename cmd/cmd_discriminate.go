// cmd_discriminate.go - Discriminate Command
// Hauptfunktionen: DiscriminateHandler
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/7blacky7/stylegan/api"
)

// DiscriminateHandler - Bewertet Bilder ueber den Server
func DiscriminateHandler(cmd *cobra.Command, args []string) error {
	req := api.DiscriminateRequest{Model: args[0]}

	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		req.Images = append(req.Images, data)
	}

	if path, _ := cmd.Flags().GetString("condition"); path != "" {
		t, err := readTensor(path)
		if err != nil {
			return err
		}
		req.Condition = t
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Discriminate(cmd.Context(), &req)
	if err != nil {
		return err
	}

	header := []string{"IMAGE"}
	if len(resp.Scores) > 0 {
		header = append(header, "SCORE")
	}
	if len(resp.CondLogits) > 0 {
		header = append(header, "COND LOGIT")
	}

	var data [][]string
	for i, path := range args[1:] {
		row := []string{filepath.Base(path)}
		if i < len(resp.Scores) {
			row = append(row, strconv.FormatFloat(float64(resp.Scores[i]), 'f', 4, 32))
		}
		if i < len(resp.CondLogits) {
			row = append(row, strconv.FormatFloat(float64(resp.CondLogits[i]), 'f', 4, 32))
		}
		data = append(data, row)
	}

	table := newTable(cmd.OutOrStdout(), header)
	table.AppendBulk(data)
	table.Render()

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		fmt.Fprintln(os.Stderr)
		resp.Summary()
	}

	return nil
}

// newDiscriminateCmd - Erstellt den discriminate Command
func newDiscriminateCmd() *cobra.Command {
	discriminateCmd := &cobra.Command{
		Use:     "discriminate MODEL IMAGE...",
		Aliases: []string{"score"},
		Short:   "Score images with a discriminator",
		Args:    cobra.MinimumNArgs(2),
		PreRunE: checkServerHeartbeat,
		RunE:    DiscriminateHandler,
	}

	discriminateCmd.Flags().String("condition", "", "JSON file with sentence embeddings (B, embedding_dim)")
	discriminateCmd.Flags().Bool("verbose", false, "Show timings for the request")

	return discriminateCmd
}

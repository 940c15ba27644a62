// cmd_generate.go - Generate Command
// Hauptfunktionen: GenerateHandler, writeImages, readTensor, writeTensor
package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/7blacky7/stylegan/api"
	"github.com/7blacky7/stylegan/model/imageproc"
)

var errTerminalOutput = errors.New("refusing to write image data to a terminal, use --output or redirect stdout")

// GenerateHandler - Erzeugt Bilder ueber den Server
func GenerateHandler(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	output, _ := flags.GetString("output")
	if output == "" || output == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errTerminalOutput
		}
	}

	req := api.GenerateRequest{Model: args[0]}
	req.Seed, _ = flags.GetUint64("seed")
	req.Batch, _ = flags.GetInt("batch")
	req.Truncation, _ = flags.GetFloat32("truncation")
	req.TruncationSamples, _ = flags.GetInt("truncation-samples")
	req.FixedNoise, _ = flags.GetBool("fixed-noise")
	req.InputIsLatent, _ = flags.GetBool("w")

	if path, _ := flags.GetString("latents"); path != "" {
		t, err := readTensor(path)
		if err != nil {
			return err
		}
		req.Latents = t
	}

	saveLatents, _ := flags.GetString("save-latents")
	req.ReturnLatents = saveLatents != ""

	if keepAlive, _ := flags.GetString("keepalive"); keepAlive != "" {
		d, err := time.ParseDuration(keepAlive)
		if err != nil {
			return err
		}
		req.KeepAlive = &api.Duration{Duration: d}
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Generate(cmd.Context(), &req)
	if err != nil {
		return err
	}

	grid, _ := flags.GetBool("grid")
	nrow, _ := flags.GetInt("nrow")
	paths, err := writeImages(resp.Images, output, grid, nrow)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(os.Stderr, p)
	}

	if saveLatents != "" {
		if resp.Latents == nil {
			return errors.New("server returned no latents")
		}
		if err := writeTensor(saveLatents, resp.Latents); err != nil {
			return err
		}
	}

	if verbose, _ := flags.GetBool("verbose"); verbose {
		fmt.Fprintf(os.Stderr, "seed:           %d\n", resp.Seed)
		resp.Summary()
	}

	return nil
}

// writeImages - Schreibt PNGs. Mehrere Bilder ohne Grid werden als
// name-0.png, name-1.png, ... abgelegt. Ohne Ziel geht das Ergebnis nach stdout.
func writeImages(images []api.ImageData, output string, grid bool, nrow int) ([]string, error) {
	if len(images) == 0 {
		return nil, imageproc.ErrNoImages
	}

	toStdout := output == "" || output == "-"
	if toStdout && len(images) > 1 && !grid {
		return nil, errors.New("multiple images need --grid or --output")
	}

	if grid && len(images) > 1 {
		imgs := make([]*image.RGBA, len(images))
		for i, data := range images {
			img, _, err := imageproc.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, err
			}
			imgs[i] = imageproc.Composite(img)
		}

		if nrow < 1 {
			nrow = len(imgs)
		}

		g, err := imageproc.Grid(imgs, nrow, 2)
		if err != nil {
			return nil, err
		}

		png, err := imageproc.EncodePNG(g)
		if err != nil {
			return nil, err
		}
		images = []api.ImageData{png}
	}

	if toStdout {
		_, err := os.Stdout.Write(images[0])
		return nil, err
	}

	if len(images) == 1 {
		return []string{output}, os.WriteFile(output, images[0], 0o644)
	}

	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".png"
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))

	paths := make([]string, len(images))
	for i, data := range images {
		paths[i] = fmt.Sprintf("%s-%d%s", base, i, ext)
		if err := os.WriteFile(paths[i], data, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// readTensor - Liest einen Tensor im JSON-Format {"shape": [...], "data": [...]}
func readTensor(path string) (*api.Tensor, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t api.Tensor
	if err := json.Unmarshal(bts, &t); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &t, nil
}

// writeTensor - Schreibt einen Tensor als JSON
func writeTensor(path string, t *api.Tensor) error {
	bts, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bts, 0o644)
}

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:     "generate MODEL",
		Aliases: []string{"gen"},
		Short:   "Generate images with a model",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    GenerateHandler,
	}

	generateCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")
	generateCmd.Flags().Int("batch", 1, "Number of images to sample")
	generateCmd.Flags().Float32("truncation", 1, "Truncation psi in (0, 1), 1 disables truncation")
	generateCmd.Flags().Int("truncation-samples", 0, "Latents used to estimate the W average")
	generateCmd.Flags().Bool("fixed-noise", false, "Use the noise buffers stored in the checkpoint")
	generateCmd.Flags().String("latents", "", "JSON file with input latents")
	generateCmd.Flags().Bool("w", false, "Treat --latents as W-space styles")
	generateCmd.Flags().String("save-latents", "", "Write the styles used for synthesis to a JSON file")
	generateCmd.Flags().StringP("output", "o", "", "Output PNG file (default stdout)")
	generateCmd.Flags().Bool("grid", false, "Tile all images into one PNG")
	generateCmd.Flags().Int("nrow", 0, "Images per grid row (default batch)")
	generateCmd.Flags().String("keepalive", "", "Duration to keep a model loaded (e.g. 5m)")
	generateCmd.Flags().Bool("verbose", false, "Show timings for the request")

	return generateCmd
}

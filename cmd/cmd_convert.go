// cmd_convert.go - Convert und Init Commands (lokal, ohne Server)
// Hauptfunktionen: ConvertHandler, InitHandler
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/stylegan/convert"
	"github.com/7blacky7/stylegan/envconfig"
	"github.com/7blacky7/stylegan/format"
	fsggml "github.com/7blacky7/stylegan/fs/ggml"
	"github.com/7blacky7/stylegan/logutil"
	"github.com/7blacky7/stylegan/model"
	"github.com/7blacky7/stylegan/model/models/stylegan"
)

// ConvertHandler - Konvertiert einen PyTorch/Safetensors-Checkpoint nach GGUF
func ConvertHandler(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	output, _ := cmd.Flags().GetString("output")
	typ, _ := cmd.Flags().GetString("type")

	ft, err := fsggml.ParseFileType(typ)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}

	if err := convert.ConvertModel(args[0], f, ft); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(output)
		return err
	}

	return printFileSize(cmd, output)
}

// InitHandler - Schreibt einen Checkpoint mit zufaelligen Gewichten
func InitHandler(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	flags := cmd.Flags()
	output, _ := flags.GetString("output")
	arch, _ := flags.GetString("arch")
	typ, _ := flags.GetString("type")
	seed, _ := flags.GetUint64("seed")
	embeddingDim, _ := flags.GetInt("embedding-dim")

	ft, err := fsggml.ParseFileType(typ)
	if err != nil {
		return err
	}

	var kv fsggml.KV
	switch strings.ToLower(arch) {
	case stylegan.Architecture:
		size, _ := flags.GetInt("size")
		c := stylegan.DefaultConfig(size)
		c.ChannelMultiplier, _ = flags.GetInt("channel-multiplier")
		c.ChannelMax, _ = flags.GetInt("channel-max")
		c.WDim, _ = flags.GetInt("w-dim")
		c.NMLP, _ = flags.GetInt("n-mlp")
		c.EmbeddingDim = embeddingDim
		c.HasGenerator, _ = flags.GetBool("generator")
		c.HasDiscriminator, _ = flags.GetBool("discriminator")
		kv = c.KV()
	case stylegan.DNet256Architecture:
		c := stylegan.DNet256Config{EmbeddingDim: embeddingDim, Unconditional: true}
		c.DFDim, _ = flags.GetInt("df-dim")
		kv = c.KV()
	default:
		return fmt.Errorf("%w: %s", model.ErrUnsupportedModel, arch)
	}

	m, err := model.Init(kv, seed)
	if err != nil {
		return err
	}

	if err := model.Save(output, m, ft); err != nil {
		return err
	}

	return printFileSize(cmd, output)
}

func printFileSize(cmd *cobra.Command, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, format.HumanBytes(fi.Size()))
	return nil
}

// newConvertCmd - Erstellt den convert Command
func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert DIR",
		Short: "Convert a PyTorch or safetensors checkpoint to GGUF",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if output, _ := cmd.Flags().GetString("output"); output == "" {
				return errors.New("--output is required")
			}
			return nil
		},
		RunE: ConvertHandler,
	}

	convertCmd.Flags().StringP("output", "o", "", "Output GGUF file")
	convertCmd.Flags().String("type", "F16", "Weight type (F32, F16, BF16)")

	return convertCmd
}

// newInitCmd - Erstellt den init Command
func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a checkpoint with randomly initialized weights",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if output, _ := cmd.Flags().GetString("output"); output == "" {
				return errors.New("--output is required")
			}
			return nil
		},
		RunE: InitHandler,
	}

	d := stylegan.DefaultConfig(256)
	initCmd.Flags().StringP("output", "o", "", "Output GGUF file")
	initCmd.Flags().String("arch", stylegan.Architecture, "Architecture ("+stylegan.Architecture+" or "+stylegan.DNet256Architecture+")")
	initCmd.Flags().String("type", "F32", "Weight type (F32, F16, BF16)")
	initCmd.Flags().Uint64("seed", 0, "Seed for the weight initialization")
	initCmd.Flags().Int("size", d.Size, "Output resolution")
	initCmd.Flags().Int("channel-multiplier", d.ChannelMultiplier, "Channel multiplier above 32x32")
	initCmd.Flags().Int("channel-max", d.ChannelMax, "Maximum channel count (0 for no cap)")
	initCmd.Flags().Int("w-dim", d.WDim, "Latent dimension")
	initCmd.Flags().Int("n-mlp", d.NMLP, "Mapping network depth")
	initCmd.Flags().Int("embedding-dim", d.EmbeddingDim, "Sentence embedding dimension")
	initCmd.Flags().Bool("generator", true, "Include the generator")
	initCmd.Flags().Bool("discriminator", true, "Include the discriminator")
	initCmd.Flags().Int("df-dim", 64, "Base width of the dnet256 encoder")

	return initCmd
}

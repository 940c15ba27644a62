// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/7blacky7/stylegan/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-28s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "stylegan",
		Short:         "Text-conditioned StyleGAN2 generator and discriminator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	generateCmd := newGenerateCmd()
	discriminateCmd := newDiscriminateCmd()
	showCmd := newShowCmd()
	listCmd := newListCmd()
	psCmd := newPsCmd()
	convertCmd := newConvertCmd()
	initCmd := newInitCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["STYLEGAN_HOST"]}

	for _, cmd := range []*cobra.Command{
		serveCmd,
		generateCmd,
		discriminateCmd,
		showCmd,
		listCmd,
		psCmd,
		convertCmd,
		initCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["STYLEGAN_DEBUG"],
				envVars["STYLEGAN_HOST"],
				envVars["STYLEGAN_KEEP_ALIVE"],
				envVars["STYLEGAN_MAX_BATCH"],
				envVars["STYLEGAN_MODELS"],
				envVars["STYLEGAN_NO_CACHE"],
				envVars["STYLEGAN_NUM_PARALLEL"],
				envVars["STYLEGAN_NUM_THREADS"],
				envVars["STYLEGAN_ORIGINS"],
				envVars["STYLEGAN_TRUNCATION_SAMPLES"],
			})
		case convertCmd, initCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["STYLEGAN_DEBUG"], envVars["STYLEGAN_NUM_THREADS"]})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		generateCmd,
		discriminateCmd,
		showCmd,
		listCmd,
		psCmd,
		convertCmd,
		initCmd,
	)

	return rootCmd
}

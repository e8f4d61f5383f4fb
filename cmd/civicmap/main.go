// Command civicmap compares US counties and states side by side in the
// terminal, runs the civic quest, and serves the local civic data API.
package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/pkg/config"
	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/version"
)

// interactive marks commands that own the terminal; they log to a file.
const interactive = "interactive"

// app is the state shared by every subcommand.
type app struct {
	configPath string
	apiURL     string
	logLevel   string
	debug      bool

	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprint("Error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "civicmap",
		Short: "Compare US counties and states on a shared map",
		Long: `civicmap binds two counties (or states) to slots A and B, draws both on
one map with their metric charts, and keeps the highlights in sync.

Run without a subcommand to start the comparison view.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.logger.Sync() },
		RunE:              a.runCompare,
		Annotations:       map[string]string{interactive: "true"},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/civicmap/config.yaml)")
	pf.StringVar(&a.apiURL, "api", "", "Civic data service base URL")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.debug, "debug", false, "Debug logging and the metrics footer")

	compareCmd := &cobra.Command{
		Use:         "compare",
		Short:       "Compare two counties or states (default)",
		Args:        cobra.NoArgs,
		RunE:        a.runCompare,
		Annotations: map[string]string{interactive: "true"},
	}

	questCmd := &cobra.Command{
		Use:         "quest",
		Short:       "Play the civic quest from your home county",
		Args:        cobra.NoArgs,
		RunE:        a.runQuest,
		Annotations: map[string]string{interactive: "true"},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the civic data API from the local dataset",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	serveCmd.Flags().String("database", "", "Dataset database (default from config)")
	serveCmd.Flags().String("geojson", "", "County boundary file to serve")

	importCmd := &cobra.Command{
		Use:   "import <payload.json>",
		Short: "Import a civic dataset payload into the local database",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runImport,
	}
	importCmd.Flags().String("database", "", "Dataset database (default from config)")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [fips-a] [fips-b]",
		Short: "Write the map and charts of one or two entities to SVG or PNG",
		Long: `Writes the shared map and the charts of the given counties or states.
Without arguments on a terminal, a short form asks for them.`,
		Args: cobra.MaximumNArgs(2),
		RunE: a.runSnapshot,
	}
	snapshotCmd.Flags().StringP("output", "o", "civicmap-snapshot.svg", "Output file (.svg or .png)")
	snapshotCmd.Flags().String("format", "", "svg or png (default from the output extension)")
	snapshotCmd.Flags().String("title", "", "Header title")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "civicmap %s\n", version.Version)
		},
	}

	rootCmd.AddCommand(compareCmd, questCmd, serveCmd, importCmd, snapshotCmd, versionCmd)
	return rootCmd
}

// setup loads the config, applies the global flags and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFrom(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		a.cfg.API.BaseURL = a.apiURL
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.debug {
		a.cfg.Log.Level = "debug"
	}

	opts := logging.Options{Level: a.cfg.Log.Level}
	if cmd.Annotations[interactive] != "" {
		opts.File = a.cfg.LogFile()
	}
	logger, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.logger = logger.With(zap.String("cmd", cmd.Name()))
	return nil
}

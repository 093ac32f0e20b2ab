package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coolbeans/quarry/pkg/config"
	"github.com/coolbeans/quarry/pkg/logging"
)

var version = "0.1.0"

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "SPARQL algebra engine over RDF quad stores",
		Long: `Quarry evaluates SPARQL SELECT and ASK queries over RDF datasets.

Data is read from N-Triples/N-Quads files, YAML dataset manifests,
compressed snapshots, or a SQLite quad store.

Examples:
  quarry query --data people.nt "SELECT ?name WHERE { ?p <http://xmlns.com/foaf/0.1/name> ?name }"
  quarry load --data dataset.yaml --db quarry.db
  quarry snapshot --data dataset.yaml --out people.qsnp --compression zstd
  quarry stats --data people.qsnp`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (TOML or YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(queryCmd(a))
	rootCmd.AddCommand(watchCmd(a))
	rootCmd.AddCommand(loadCmd(a))
	rootCmd.AddCommand(snapshotCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(exportCmd(a))

	return rootCmd
}

// init loads configuration, applies flag overrides and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

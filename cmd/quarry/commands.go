package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coolbeans/quarry/pkg/dataset"
	"github.com/coolbeans/quarry/pkg/engine"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/metrics"
	"github.com/coolbeans/quarry/pkg/query"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/store"
)

// newExecutor builds a query executor from the configuration. When metrics
// are enabled the returned registry holds the engine's collectors.
func (a *app) newExecutor(st store.QuadStore) (*query.Executor, *prometheus.Registry, error) {
	opts, err := a.cfg.EngineOptions()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, engine.WithLogger(a.log), engine.WithObserver(engine.LogObserver{Logger: a.log}))

	var reg *prometheus.Registry
	if a.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		opts = append(opts, engine.WithObserver(metrics.NewObserver(reg)))
	}

	return query.NewExecutor(st,
		query.WithTimeout(a.cfg.Timeout()),
		query.WithEngineOptions(opts...),
	), reg, nil
}

func queryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [sparql-query]",
		Short: "Run a SPARQL query",
		Long: `Execute a SPARQL SELECT or ASK query.

Examples:
  # Query an N-Triples file
  quarry query --data people.nt "SELECT ?s WHERE { ?s a <http://example.org/Person> }"

  # Query a dataset manifest, JSON output
  quarry query --data dataset.yaml --format json "ASK { ?s ?p ?o }"

  # Query the configured SQLite store with timing
  quarry query --timing "SELECT (COUNT(*) AS ?n) WHERE { ?s ?p ?o }"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			formatStr, _ := cmd.Flags().GetString("format")
			showTiming, _ := cmd.Flags().GetBool("timing")
			metricsOut, _ := cmd.Flags().GetString("metrics-out")

			st, release, err := a.openStore(data)
			if err != nil {
				return err
			}
			defer release()

			if metricsOut != "" {
				a.cfg.Metrics.Enabled = true
			}
			executor, reg, err := a.newExecutor(st)
			if err != nil {
				return err
			}

			result, err := executor.ExecuteStringWithContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := render(result, formatStr)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)

			if showTiming {
				printTiming(cmd, result.Metrics)
			}
			if metricsOut != "" && reg != nil {
				if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
					return errors.Wrapf(err, "write metrics to %s", metricsOut)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file, dataset manifest (.yaml) or snapshot (.qsnp)")
	cmd.Flags().StringP("format", "f", "table", "Output format: table, json, csv, pretty")
	cmd.Flags().Bool("timing", false, "Show query timing")
	cmd.Flags().String("metrics-out", "", "Write Prometheus metrics to this file")

	return cmd
}

func printTiming(cmd *cobra.Command, m query.QueryMetrics) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\nTiming:\n")
	fmt.Fprintf(w, "  Parse:   %v\n", m.ParseTime)
	fmt.Fprintf(w, "  Compile: %v\n", m.CompileTime)
	fmt.Fprintf(w, "  Execute: %v\n", m.ExecuteTime)
	fmt.Fprintf(w, "  Total:   %v\n", m.TotalTime)
	fmt.Fprintf(w, "  Patterns: %d, Results: %d\n", m.PatternsCount, m.ResultCount)
}

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [sparql-query]",
		Short: "Re-run a query whenever the data files change",
		Long: `Load a dataset, run the query, and run it again each time one of the
dataset's files is written, replaced or removed. Stop with Ctrl-C.

Example:
  quarry watch --data dataset.yaml "SELECT (COUNT(*) AS ?n) WHERE { ?s ?p ?o }"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			formatStr, _ := cmd.Flags().GetString("format")
			if data == "" {
				return errors.New("--data flag is required")
			}

			sources, err := dataset.Resolve(data)
			if err != nil {
				return err
			}

			ms := store.NewMemoryStore()
			watcher := dataset.NewWatcher(ms, a.log)
			for _, src := range sources {
				if _, err := watcher.Track(src); err != nil {
					return err
				}
			}

			executor, _, err := a.newExecutor(ms)
			if err != nil {
				return err
			}
			run := func() {
				result, err := executor.ExecuteStringWithContext(cmd.Context(), args[0])
				if err != nil {
					a.log.Errorw("query failed", logging.FieldError, err)
					return
				}
				out, err := render(result, formatStr)
				if err != nil {
					a.log.Errorw("render failed", logging.FieldError, err)
					return
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			}

			changes := make(chan dataset.Change, 16)
			watcher.OnChange(func(c dataset.Change) { changes <- c })
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()

			run()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			for {
				select {
				case c := <-changes:
					if c.Err == nil {
						run()
					}
				case <-sig:
					return nil
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file or dataset manifest (.yaml)")
	cmd.Flags().StringP("format", "f", "table", "Output format: table, json, csv, pretty")

	return cmd
}

func loadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load RDF files into a SQLite quad store",
		Long: `Parse N-Triples/N-Quads files (or every file of a dataset manifest) and
insert them into a SQLite database. Quads already present are skipped.

Example:
  quarry load --data dataset.yaml --db quarry.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			dbPath, _ := cmd.Flags().GetString("db")
			if data == "" {
				return errors.New("--data flag is required")
			}
			if dbPath == "" {
				dbPath = a.cfg.Store.Path
			}

			sources, err := dataset.Resolve(data)
			if err != nil {
				return err
			}

			st, err := store.OpenSQLite(dbPath, store.WithSQLiteLogger(a.log))
			if err != nil {
				return err
			}
			defer st.Close()

			read, added := 0, 0
			for _, src := range sources {
				quads, err := dataset.ParseFile(src, dataset.NewScope())
				if err != nil {
					return err
				}
				n, err := st.BulkAdd(cmd.Context(), quads)
				if err != nil {
					return errors.Wrapf(err, "load %s", src.Path)
				}
				a.log.Infow("loaded", logging.FieldFile, src.Path, logging.FieldCount, n)
				read += len(quads)
				added += n
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d statements (%d new) into %s\n", read, added, dbPath)
			return nil
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file or dataset manifest (.yaml)")
	cmd.Flags().String("db", "", "SQLite database path (default: store.path)")

	return cmd
}

func snapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a compressed snapshot of a dataset",
		Long: `Serialize every quad of a dataset into a compressed N-Quads snapshot.
Snapshots load much faster than re-parsing the source files and can be
passed to --data wherever a data file is accepted.

Example:
  quarry snapshot --data dataset.yaml --out people.qsnp --compression zstd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return errors.New("--out flag is required")
			}
			if cmd.Flags().Changed("compression") {
				a.cfg.Snapshot.Compression, _ = cmd.Flags().GetString("compression")
			}
			compression, err := a.cfg.Compression()
			if err != nil {
				return err
			}

			st, release, err := a.openStore(data)
			if err != nil {
				return err
			}
			defer release()

			f, err := os.Create(out)
			if err != nil {
				return errors.Wrapf(err, "create %s", out)
			}
			n, err := store.WriteSnapshot(f, st, compression)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d quads to %s (%s)\n", n, out, compression)
			return nil
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file, dataset manifest (.yaml) or snapshot (.qsnp)")
	cmd.Flags().StringP("out", "o", "", "Snapshot file to write")
	cmd.Flags().String("compression", "", "Compression: zstd, snappy, lz4, none (default: snapshot.compression)")

	return cmd
}

// readStats surfaces database errors where the store can report them.
func readStats(ctx context.Context, st store.StatsProvider) (store.IndexStats, error) {
	if r, ok := st.(interface {
		ReadStats(context.Context) (store.IndexStats, error)
	}); ok {
		return r.ReadStats(ctx)
	}
	return st.Stats(), nil
}

func statsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dataset statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			top, _ := cmd.Flags().GetInt("top")

			st, release, err := a.openStore(data)
			if err != nil {
				return err
			}
			defer release()

			stats, err := readStats(cmd.Context(), st)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Quads:              %d\n", stats.TotalQuads)
			fmt.Fprintf(w, "Named graphs:       %d\n", stats.Graphs)
			fmt.Fprintf(w, "Unique subjects:    %d\n", stats.UniqueSubjects)
			fmt.Fprintf(w, "Unique predicates:  %d\n", stats.UniquePredicates)
			fmt.Fprintf(w, "Unique objects:     %d\n", stats.UniqueObjects)

			if top > 0 && len(stats.PredicateCounts) > 0 {
				fmt.Fprintf(w, "\nTop predicates:\n")
				for _, pc := range topCounts(stats.PredicateCounts, top) {
					fmt.Fprintf(w, "  %6d  %s\n", pc.count, pc.term)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file, dataset manifest (.yaml) or snapshot (.qsnp)")
	cmd.Flags().Int("top", 10, "Number of most frequent predicates to list")

	return cmd
}

type termCount struct {
	term  string
	count int
}

// topCounts returns the n largest entries, ties broken by term.
func topCounts(counts map[string]int, n int) []termCount {
	out := make([]termCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, termCount{term, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].term < out[j].term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func exportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a dataset as TriG, N-Quads or a graph view",
		Long: `Serialize a dataset. Formats:
  trig     default graph as Turtle, named graphs as TriG blocks
  nquads   one quad per line
  json     nodes and edges for visualization tools
  dot      Graphviz digraph

Example:
  quarry export --data dataset.yaml --format trig --prefix ex=http://example.org/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			formatStr, _ := cmd.Flags().GetString("format")
			prefixes, _ := cmd.Flags().GetStringToString("prefix")

			st, release, err := a.openStore(data)
			if err != nil {
				return err
			}
			defer release()

			w := cmd.OutOrStdout()
			switch formatStr {
			case "trig":
				opts := make([]store.TurtleOption, 0, len(prefixes))
				for prefix, ns := range prefixes {
					opts = append(opts, store.WithPrefix(prefix, ns))
				}
				return store.NewTurtleSerializer(opts...).Serialize(w, st)
			case "nquads":
				quads, err := store.Collect(st.Find(rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{}))
				if err != nil {
					return err
				}
				lines := make([]string, len(quads))
				for i, q := range quads {
					lines[i] = q.NQuads()
				}
				sort.Strings(lines)
				for _, line := range lines {
					fmt.Fprintln(w, line)
				}
				return nil
			case "json", "dot":
				graph, err := store.ExportGraph(st)
				if err != nil {
					return err
				}
				if formatStr == "dot" {
					fmt.Fprint(w, graph.ToDOT())
					return nil
				}
				out, err := graph.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(out))
				return nil
			default:
				return errors.InvalidConfigurationf("unknown export format %q", formatStr)
			}
		},
	}

	cmd.Flags().StringP("data", "d", "", "Data file, dataset manifest (.yaml) or snapshot (.qsnp)")
	cmd.Flags().StringP("format", "f", "trig", "Output format: trig, nquads, json, dot")
	cmd.Flags().StringToString("prefix", nil, "Extra prefix declarations for trig output (name=namespace)")

	return cmd
}

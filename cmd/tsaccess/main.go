package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantpipe/tsaccess/pkg/client"
	"github.com/quantpipe/tsaccess/pkg/config"
	"github.com/quantpipe/tsaccess/pkg/json"
	"github.com/quantpipe/tsaccess/pkg/logger"
)

var version = "0.1.0"

type rootFlags struct {
	dbURL      string
	configPath string
	logLevel   string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "tsaccess",
		Short: "tsaccess - TimescaleDB access toolkit for time-series pipelines",
		Long: `tsaccess wraps TimescaleDB/PostgreSQL access for quantitative data pipelines.
It provides schema inspection, hypertable diagnostics and data-quality checks
over a single database endpoint.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.dbURL, "db-url", os.Getenv("TSACCESS_DB_URL"),
		"database URL (defaults to TSACCESS_DB_URL)")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		versionCmd(),
		checkCmd(flags),
		schemasCmd(flags),
		tablesCmd(flags),
		columnsCmd(flags),
		countCmd(flags),
		gapsCmd(flags),
		duplicatesCmd(flags),
		nullsCmd(flags),
		sizeCmd(flags),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds a client from flags, the config file, or the environment.
func newClient(ctx context.Context, flags *rootFlags) (*client.Client, error) {
	cfg := config.New(flags.dbURL)
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.dbURL != "" {
		cfg.Database.URL = flags.dbURL
	}
	cfg.Logging.Level = flags.logLevel

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}

	return client.New(ctx, cfg)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tsaccess %s\n", version)
		},
	}
}

func checkCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			if !c.CheckConnection(cmd.Context()) {
				return fmt.Errorf("database is not reachable")
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func schemasCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List user-defined schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			schemas, err := c.GetSchemas(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(schemas)
		},
	}
}

func tablesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <schema>",
		Short: "List tables in a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			tables, err := c.GetTableNames(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(tables)
		},
	}
}

func columnsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <schema> <table>",
		Short: "List columns of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			columns, err := c.GetColumnNames(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(columns)
		},
	}
}

func countCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count <schema> <table>",
		Short: "Count rows in a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			count, err := c.GetRowCount(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}

func gapsCmd(flags *rootFlags) *cobra.Command {
	var groupColumn, seqColumn string

	cmd := &cobra.Command{
		Use:   "gaps <schema> <table>",
		Short: "Report missing sequence values per group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			missing, err := c.GetMissingSeq(cmd.Context(), args[0], args[1], groupColumn, seqColumn)
			if err != nil {
				return err
			}
			logger.Info("missing sequence scan finished",
				zap.String("table", args[0]+"."+args[1]),
				zap.Int("gaps", missing.NumRows()))
			return printJSON(missing)
		},
	}
	cmd.Flags().StringVar(&groupColumn, "group-column", "instrument_name", "grouping key column")
	cmd.Flags().StringVar(&seqColumn, "seq-column", "trade_seq", "sequence-numbered column")
	return cmd
}

func duplicatesCmd(flags *rootFlags) *cobra.Command {
	var keyColumns []string

	cmd := &cobra.Command{
		Use:   "duplicates <schema> <table>",
		Short: "Report rows with duplicated key combinations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			dups, err := c.GetDuplicateRows(cmd.Context(), args[0], args[1], keyColumns...)
			if err != nil {
				return err
			}
			return printJSON(dups)
		},
	}
	cmd.Flags().StringSliceVar(&keyColumns, "key-columns",
		[]string{"instrument_name", "trade_seq"}, "columns defining row uniqueness")
	return cmd
}

func nullsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nulls <schema> <table>",
		Short: "Summarize null values per column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			summary, err := c.GetNullSummary(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}

func sizeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "size <schema> <table>",
		Short: "Show on-disk hypertable size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer c.Close()

			size, err := c.GetHypertableSize(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(size)
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

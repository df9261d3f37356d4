package main

import (
	"fmt"
	"strconv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/storm-events-etl/internal/adapter/kafka"
	"github.com/couchcryptid/storm-events-etl/internal/adapter/mongo"
	"github.com/couchcryptid/storm-events-etl/internal/adapter/noaa"
	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/couchcryptid/storm-events-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "etl",
		Short: "NOAA Storm Events ETL",
		Long: "Downloads the NCEI Storm Events details archives, extracts them, converts the CSVs\n" +
			"to JSON batch files and loads the batches into MongoDB or publishes them to Kafka.\n" +
			"Settings such as directories and timeouts are read from the environment (and .env).",
		SilenceUsage: true,
	}

	// Setup runs per stage command so that help and usage errors do not
	// touch the environment or the filesystem.
	for _, cmd := range []*cobra.Command{
		newDownloadCmd(a),
		newExtractCmd(a),
		newTransformCmd(a),
		newLoadCmd(a),
		newPublishCmd(a),
		newCleanupCmd(a),
	} {
		cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Name(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		}
		root.AddCommand(cmd)
	}
	return root
}

func newDownloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download <start-year> <end-year>",
		Short: "Download the archives for a range of years into the landing directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseYear(args[0])
			if err != nil {
				return err
			}
			end, err := parseYear(args[1])
			if err != nil {
				return err
			}

			table, err := domain.LoadTable(a.cfg.FilesList)
			if err != nil {
				return err
			}
			a.logger.Debug("archive table loaded", "years", table.Len(), "path", a.cfg.FilesList)
			client := noaa.NewClient(a.cfg.BaseURL, a.cfg.HTTPTimeout, a.logger)

			return a.finish(a.runner.Download(cmd.Context(), table, client, start, end))
		},
	}
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Decompress every archive in the landing directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.finish(a.runner.Extract(cmd.Context()))
		},
	}
}

func newTransformCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "transform [columns] <chunksize>",
		Short: "Convert extracted CSVs into JSON batch files",
		Long: "Converts every CSV in the extraction directory into JSON batch files of at most\n" +
			"chunksize rows. columns is a comma separated list; without it every column is kept.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var columns string
			if len(args) == 2 {
				columns, args = args[0], args[1:]
			}
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: chunksize %q is not a number", domain.ErrConfig, args[0])
			}

			return a.finish(a.runner.Transform(cmd.Context(), pipeline.TransformOptions{
				Columns:   domain.SplitColumns(columns),
				BatchSize: size,
				Format:    domain.BatchFormat(format),
			}))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(domain.FormatArray),
		"batch file format: array (loadable) or lines (one object per line)")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <host> <port> <database> <collection> <user> <password>",
		Short: "Insert the JSON batch files into a MongoDB collection",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: port %q is not a number", domain.ErrConfig, args[1])
			}
			params := mongo.Params{
				Host:       args[0],
				Port:       port,
				Database:   args[2],
				Collection: args[3],
				Username:   args[4],
				Password:   args[5],
				AuthSource: a.cfg.MongoAuthSource,
				Timeout:    a.cfg.MongoTimeout,
			}
			store, err := mongo.Connect(cmd.Context(), params, a.logger)
			if err != nil {
				return err
			}
			return a.finish(a.runner.Load(cmd.Context(), store))
		},
	}
}

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [brokers] [topic]",
		Short: "Publish every record of the JSON batch files to a Kafka topic",
		Long: "Publishes every record of the JSON batch files as one Kafka message.\n" +
			"brokers (comma separated) and topic default to KAFKA_BROKERS and KAFKA_TOPIC.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			brokers, topic := a.cfg.KafkaBrokers, a.cfg.KafkaTopic
			if len(args) > 0 {
				brokers = sharedcfg.ParseBrokers(args[0])
			}
			if len(args) > 1 {
				topic = args[1]
			}
			if len(brokers) == 0 || topic == "" {
				return fmt.Errorf("%w: brokers and topic are required", domain.ErrConfig)
			}

			writer := kafka.NewWriter(brokers, topic, clockwork.NewRealClock(), a.logger)
			return a.finish(a.runner.Publish(cmd.Context(), writer))
		},
	}
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup [load|extract]",
		Short: "Empty the landing directory, the extraction directory, or both",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selector string
			if len(args) == 1 {
				selector = args[0]
			}
			target, err := domain.ParseCleanTarget(selector)
			if err != nil {
				return err
			}
			return a.finish(a.runner.Cleanup(cmd.Context(), target))
		},
	}
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: year %q is not a number", domain.ErrConfig, s)
	}
	return year, nil
}

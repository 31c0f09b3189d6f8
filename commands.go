package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"fleetwise/agent"
	"fleetwise/config"
	"fleetwise/database"
	"fleetwise/llmclient"
	"fleetwise/web/types"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var showTable bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question against the fleet database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.Cleanup()

			ctx := cmd.Context()
			mongoStore, err := database.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
			if err != nil {
				return err
			}
			defer mongoStore.Close(ctx)

			question := strings.Join(args, " ")
			fleetAgent := agent.NewAgent(cfg, llmclient.New(cfg, logger), mongoStore, logger)
			resp := fleetAgent.Respond(ctx, question, []types.AgentMessage{{Role: types.RoleUser, Content: question}})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			if resp.HasQuery() {
				fmt.Fprintf(out, "\nQuery: %s\n", resp.Query)
			}
			if showTable && len(resp.Table.Columns) > 0 {
				fmt.Fprintln(out)
				writeTable(out, resp.Table)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTable, "table", false, "print the result rows as a table")
	return cmd
}

func newParseOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-order <file|->",
		Short: "Parse an order message into structured line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.Cleanup()

			message, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			extractor, matcher := loadExtractor(cfg, llmclient.New(cfg, logger), logger)
			defer matcher.Close()

			parsed := extractor.Parse(cmd.Context(), message)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parsed)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		fleets int
		trips  int
		start  string
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the fleets and tripplanners collections with demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fmt.Errorf("invalid --start date: %w", err)
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer config.Cleanup()

			ctx := cmd.Context()
			mongoStore, err := database.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
			if err != nil {
				return err
			}
			defer mongoStore.Close(ctx)

			res, err := mongoStore.Seed(ctx, fleets, trips, startDate, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d fleets and %d trips\n", res.Fleets, res.Trips)
			return nil
		},
	}
	cmd.Flags().IntVar(&fleets, "fleets", 10, "number of fleets")
	cmd.Flags().IntVar(&trips, "trips", 20, "number of trips, one per day")
	cmd.Flags().StringVar(&start, "start", "2025-05-20", "date of the first trip (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read order message: %w", err)
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		return "", fmt.Errorf("order message is empty")
	}
	return message, nil
}

// writeTable prints t as tab-separated text.
func writeTable(w io.Writer, t types.Table) {
	fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

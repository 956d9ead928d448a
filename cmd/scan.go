package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/litetable/litetable-filter/internal/config"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/fixtures"
	"github.com/litetable/litetable-filter/internal/scan"
	grpcserver "github.com/litetable/litetable-filter/internal/server/grpc"
	"github.com/litetable/litetable-filter/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"io"
	"os"
)

const (
	outputText  = "text"
	outputTable = "table"
	outputJSON  = "json"
)

type scanOptions struct {
	filterFile string
	example    string
	now        string
	prefix     string
	start      string
	end        string
	output     string
	grpcAddr   string
}

func newScanCmd(v *viper.Viper) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan rows through a filter",
		Long: `Scan a row range through a filter and print the surviving cells.

The filter comes from a YAML or JSON file (--filter) or from one of the examples listed by
"litetable-filter filters" (--example). Without either every cell passes. Examples that
select by timestamp only match data seeded with the same --now.

Rows the filter fails on are reported after the output; the rest of the scan still prints.

Examples:
  litetable-filter scan --filter ./latest.yaml --prefix phone#4c410523
  litetable-filter scan --example value_regex --output table
  litetable-filter scan --example chain --grpc localhost:50051`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputText, outputTable, outputJSON:
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
			f, err := opts.filter()
			if err != nil {
				return err
			}
			rr := storage.RowRange{
				Prefix: []byte(opts.prefix),
				Start:  []byte(opts.start),
				End:    []byte(opts.end),
			}

			var result *scan.Result
			if opts.grpcAddr != "" {
				result, err = scanRemote(cmd.Context(), opts.grpcAddr, rr, f)
			} else {
				cfg, cfgErr := loadConfig(cmd, v)
				if cfgErr != nil {
					return cfgErr
				}
				result, err = scanLocal(cmd.Context(), cfg, rr, f)
			}
			if err != nil {
				return err
			}

			if err := writeResult(cmd.OutOrStdout(), opts.output, result); err != nil {
				return err
			}
			return result.Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&opts.filterFile, "filter", "", "YAML or JSON filter file")
	fl.StringVar(&opts.example, "example", "", "name of an example filter")
	fl.StringVar(&opts.now, "now", "", "dataset time of the example as RFC 3339 (default current time)")
	fl.StringVar(&opts.prefix, "prefix", "", "only rows with this key prefix")
	fl.StringVar(&opts.start, "start", "", "first row key, inclusive")
	fl.StringVar(&opts.end, "end", "", "last row key, exclusive")
	fl.StringVarP(&opts.output, "output", "o", outputText, "output format (text, table, json)")
	fl.StringVar(&opts.grpcAddr, "grpc", "", "scan a running server at this gRPC address instead of the data directory")
	return cmd
}

func (o scanOptions) filter() (filter.Filter, error) {
	switch {
	case o.filterFile != "" && o.example != "":
		return filter.Filter{}, errors.New("--filter and --example are mutually exclusive")

	case o.filterFile != "":
		data, err := os.ReadFile(o.filterFile)
		if err != nil {
			return filter.Filter{}, fmt.Errorf("read filter: %w", err)
		}
		return filter.ParseDefinition(data)

	case o.example != "":
		clock, err := parseClock(o.now)
		if err != nil {
			return filter.Filter{}, err
		}
		example, ok := fixtures.Lookup(clock, o.example)
		if !ok {
			return filter.Filter{}, fmt.Errorf("unknown example %q", o.example)
		}
		return example.Filter, nil

	default:
		return filter.PassAll(), nil
	}
}

func scanLocal(ctx context.Context, cfg *config.Config, rr storage.RowRange, f filter.Filter) (*scan.Result, error) {
	executor, err := scan.New(&scan.Config{Workers: cfg.Scan.Workers})
	if err != nil {
		return nil, err
	}

	var result *scan.Result
	err = withStore(cfg, func(store storage.RowStore) error {
		rows, err := store.GetRows(ctx, rr)
		if err != nil {
			return err
		}
		result, err = executor.Scan(ctx, rows, f)
		return err
	})
	return result, err
}

func scanRemote(ctx context.Context, addr string, rr storage.RowRange, f filter.Filter) (*scan.Result, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	def := f.Definition()
	resp, err := grpcserver.NewClient(conn).ReadRows(ctx, &grpcserver.ReadRowsRequest{
		Range:  rr,
		Filter: &def,
	})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	result := &scan.Result{Rows: resp.Rows}
	for _, failure := range resp.Failures {
		result.Errors = append(result.Errors, &scan.RowError{
			Key: []byte(failure.Key),
			Err: errors.New(failure.Message),
		})
	}
	return result, nil
}

func writeResult(w io.Writer, output string, result *scan.Result) error {
	switch output {
	case outputText:
		return scan.Render(w, result)
	case outputTable:
		scan.RenderTable(w, result)
		return nil
	case outputJSON:
		rows := result.Rows
		if rows == nil {
			rows = []scan.ResultRow{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

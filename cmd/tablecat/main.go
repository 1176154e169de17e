// Command tablecat opens a table and prints its rows, mirroring the
// subcommand-dispatch shape of the embedius CLI this was grounded on.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/colstore/tsreader/config"
	"github.com/colstore/tsreader/tstable"
	"github.com/colstore/tsreader/vfs"
)

func main() {
	startGops()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "cat":
		catCmd(os.Args[2:])
	case "info":
		infoCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: tablecat <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  cat    Print every row of a table")
	fmt.Fprintln(os.Stderr, "  info   Print a table's schema and row count")
}

func catCmd(args []string) {
	flags := flag.NewFlagSet("cat", flag.ExitOnError)
	root := flags.String("root", "", "table root directory (required unless --table is set)")
	table := flags.String("table", "", "table name looked up in --config")
	configPath := flags.String("config", "", "config yaml with table roots")
	limit := flags.Int("limit", 0, "stop after N rows (0 = no limit)")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootPath, opts, err := resolveTable(*root, *table, *configPath)
	if err != nil {
		log.Fatalf("cat: %v", err)
	}

	r, err := tstable.OpenWithOptions(ctx, vfs.NewLocal(), rootPath, opts)
	if err != nil {
		log.Fatalf("cat: open %s: %v", rootPath, err)
	}
	defer r.Close()

	cur := r.NewCursor()
	count := 0
	for {
		rec, err := cur.Next(ctx)
		if err != nil {
			log.Fatalf("cat: %v", err)
		}
		if rec == nil {
			break
		}
		if err := printRow(ctx, r, rec); err != nil {
			log.Fatalf("cat: %v", err)
		}
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}
}

func printRow(ctx context.Context, r *tstable.Reader, rec *tstable.Record) error {
	cols := make([]string, r.Meta.ColumnCount())
	for c := 0; c < r.Meta.ColumnCount(); c++ {
		v, err := formatColumn(ctx, rec, c, r.Meta.ColumnType(c))
		if err != nil {
			return err
		}
		cols[c] = v
	}
	fmt.Println(strings.Join(cols, "\t"))
	return nil
}

func formatColumn(ctx context.Context, rec *tstable.Record, col int, t interface{ String() string }) (string, error) {
	switch t.String() {
	case "BOOLEAN":
		v, err := rec.GetBool(ctx, col)
		return fmt.Sprint(v), err
	case "BYTE":
		v, err := rec.GetByte(ctx, col)
		return fmt.Sprint(v), err
	case "SHORT":
		v, err := rec.GetShort(ctx, col)
		return fmt.Sprint(v), err
	case "INT":
		v, err := rec.GetInt(ctx, col)
		return fmt.Sprint(v), err
	case "LONG":
		v, err := rec.GetLong(ctx, col)
		return fmt.Sprint(v), err
	case "FLOAT":
		v, err := rec.GetFloat(ctx, col)
		return fmt.Sprint(v), err
	case "DOUBLE":
		v, err := rec.GetDouble(ctx, col)
		return fmt.Sprint(v), err
	case "DATE":
		v, err := rec.GetDate(ctx, col)
		return fmt.Sprint(v), err
	case "TIMESTAMP":
		v, err := rec.GetTimestamp(ctx, col)
		return fmt.Sprint(v), err
	case "SYMBOL":
		v, err := rec.GetSymbol(ctx, col)
		return fmt.Sprint(v), err
	case "STRING":
		return rec.GetStr(ctx, col)
	case "BINARY":
		v, err := rec.GetBin(ctx, col)
		return fmt.Sprintf("%dB", len(v)), err
	default:
		return "", fmt.Errorf("unsupported column type")
	}
}

func infoCmd(args []string) {
	flags := flag.NewFlagSet("info", flag.ExitOnError)
	root := flags.String("root", "", "table root directory (required unless --table is set)")
	table := flags.String("table", "", "table name looked up in --config")
	configPath := flags.String("config", "", "config yaml with table roots")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootPath, opts, err := resolveTable(*root, *table, *configPath)
	if err != nil {
		log.Fatalf("info: %v", err)
	}

	r, err := tstable.OpenWithOptions(ctx, vfs.NewLocal(), rootPath, opts)
	if err != nil {
		log.Fatalf("info: open %s: %v", rootPath, err)
	}
	defer r.Close()

	fmt.Printf("root: %s\n", rootPath)
	fmt.Printf("partitioning: %v\n", r.Meta.Partitioning)
	fmt.Printf("partitions: %d\n", r.PartitionCount())
	fmt.Printf("rows: %d\n", r.Size())
	for c := 0; c < r.Meta.ColumnCount(); c++ {
		fmt.Printf("  %2d %-20s %s\n", c, r.Meta.ColumnName(c), r.Meta.ColumnType(c))
	}
}

// resolveTable turns the command line's --root/--table/--config flags into
// a table root and the reader options to open it with. --root always wins
// and opens with tstable's defaults; --table looks up both the root and its
// tuning knobs in --config.
func resolveTable(root, table, configPath string) (string, tstable.Options, error) {
	if root != "" {
		return root, tstable.Options{}, nil
	}
	if table == "" {
		return "", tstable.Options{}, fmt.Errorf("one of --root or --table is required")
	}
	if configPath == "" {
		return "", tstable.Options{}, fmt.Errorf("--table requires --config")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", tstable.Options{}, err
	}
	entry, err := cfg.Table(table)
	if err != nil {
		return "", tstable.Options{}, err
	}
	opts, err := entry.Options()
	if err != nil {
		return "", tstable.Options{}, err
	}
	return entry.Path, opts, nil
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}

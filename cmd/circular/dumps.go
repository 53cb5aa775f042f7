package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dray-io/circular/internal/objectstore"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

func runDumps(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printDumpsUsage(stderr)
		if len(args) < 1 {
			return exitFailure
		}
		return exitOK
	}

	action := args[0]
	fs := pflag.NewFlagSet("dumps "+action, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := addConfigFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	cfg, err := flags.load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	if !cfg.Output.ObjectStore.Enabled() {
		fmt.Fprintln(stderr, "no object store configured: pass --bucket or set output.objectStore.bucket")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openObjectStore(ctx, cfg.Output.ObjectStore)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open object store: %v\n", err)
		return exitFailure
	}
	defer store.Close()

	prefix := cfg.Output.ObjectStore.Prefix
	switch action {
	case "list":
		err = listDumps(ctx, store, prefix, stdout)
	case "get":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "usage: circular dumps get <key|dump-id>")
			return exitFailure
		}
		err = getDump(ctx, store, prefix, fs.Arg(0), stdout)
	default:
		fmt.Fprintf(stderr, "unknown dumps action: %s\n\n", action)
		printDumpsUsage(stderr)
		return exitFailure
	}
	if err != nil {
		fmt.Fprintf(stderr, "dumps %s failed: %v\n", action, err)
		return exitFailure
	}
	return exitOK
}

func printDumpsUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: circular dumps <action> [options]

Actions:
  list               List uploaded dumps, oldest first
  get <key|dump-id>  Write one dump to stdout

Options are the same as for 'circular run'; --bucket and --prefix select the dumps.`)
}

func listDumps(ctx context.Context, store objectstore.Store, prefix string, w io.Writer) error {
	objs, err := store.List(ctx, objectstore.ListPrefix(prefix))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
	for _, obj := range objs {
		modified := "-"
		if obj.LastModified > 0 {
			modified = time.UnixMilli(obj.LastModified).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", obj.Key, humanize.IBytes(uint64(obj.Size)), modified)
	}
	return tw.Flush()
}

// getDump copies one dump to w. ref is a key, an s3:// URL or a dump ID.
func getDump(ctx context.Context, store objectstore.Store, prefix, ref string, w io.Writer) error {
	key, err := resolveDumpKey(ctx, store, prefix, ref)
	if err != nil {
		return err
	}
	rc, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

func resolveDumpKey(ctx context.Context, store objectstore.Store, prefix, ref string) (string, error) {
	key := objectstore.NormalizeKey(ref)
	if strings.Contains(key, "/") || strings.HasSuffix(key, ".log") {
		return key, nil
	}

	objs, err := store.List(ctx, objectstore.ListPrefix(prefix))
	if err != nil {
		return "", err
	}
	suffix := "-" + ref + ".log"
	for _, obj := range objs {
		if strings.HasSuffix(obj.Key, suffix) {
			return obj.Key, nil
		}
	}
	return "", fmt.Errorf("dump %s: %w", ref, objectstore.ErrNotFound)
}

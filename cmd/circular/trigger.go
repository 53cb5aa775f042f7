package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dray-io/circular/internal/server"
	"github.com/spf13/pflag"
)

func runTrigger(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("trigger", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := addConfigFlags(fs)
	addr := fs.StringP("addr", "a", "", "Address of the running process (default: observability.healthAddr)")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: circular trigger [options]

Request a dump from a running 'circular run' through its HTTP endpoint.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	target := *addr
	if target == "" {
		cfg, err := flags.load(fs)
		if err != nil {
			fmt.Fprintf(stderr, "failed to load config: %v\n", err)
			return exitFailure
		}
		target = cfg.Observability.HealthAddr
	}
	if target == "" {
		fmt.Fprintln(stderr, "no address: pass --addr or set observability.healthAddr")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := requestDump(ctx, http.DefaultClient, target)
	if err != nil {
		fmt.Fprintf(stderr, "trigger failed: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "dump %s\n", resp.Status)
	return exitOK
}

// requestDump posts to the /dump endpoint at addr.
func requestDump(ctx context.Context, client *http.Client, addr string) (server.DumpResponse, error) {
	var out server.DumpResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dumpURL(addr), nil)
	if err != nil {
		return out, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// dumpURL accepts host:port, :port or a full URL.
func dumpURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/") + "/dump"
	}
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + addr + "/dump"
}

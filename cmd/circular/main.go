package main

import (
	"fmt"
	"io"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit statuses.
const (
	exitOK         = 0
	exitFailure    = 1
	exitCodecFault = 2
)

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func dispatch(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 && (args[0] == "--version" || args[0] == "-version") {
		fmt.Fprintf(stdout, "circular version %s (built %s)\n", version, buildTime)
		return exitOK
	}

	if len(args) < 1 {
		printUsage(stderr)
		return exitFailure
	}

	switch args[0] {
	case "run":
		return runRun(args[1:], stdin, stdout, stderr)
	case "trigger":
		return runTrigger(args[1:], stdout, stderr)
	case "dumps":
		return runDumps(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "circular version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: circular <command> [options]

Commands:
  run         Retain the compressed tail of stdin and dump it on request
  trigger     Ask a running process for a dump over HTTP
  dumps       List or fetch dumps stored in the object store
  version     Print version information

A running process also dumps on %s.

Run 'circular <command> --help' for more information on a command.
`, dumpSignalName)
}

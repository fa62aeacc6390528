// Command inlineform runs the reference record server, edits records inline
// from a terminal and diffs value documents.
//
//	inlineform [glog flags] serve -config inlineform.yaml
//	inlineform [glog flags] edit -config inlineform.yaml -record 42
//	inlineform diff old.json new.yaml
//	inlineform lint openapi.yaml...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{name: "serve", summary: "run the reference record server", run: runServe},
	{name: "edit", summary: "edit a record inline in the terminal", run: runEdit},
	{name: "diff", summary: "print the patch and unified diff of two documents", run: runDiff},
	{name: "lint", summary: "check x-inlineform extensions in OpenAPI documents", run: runLint},
}

func main() {
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(ctx, args[1:]); err != nil {
			glog.Flush()
			fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
	usage()
	os.Exit(2)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", filepath.Base(os.Args[0]))
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-6s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-inlineform/pkg/definition"
)

var errLintFailed = errors.New("lint failed")

func runLint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: lint OPENAPI...")
	}
	return lintFiles(ctx, os.Stderr, fs.Args())
}

func lintFiles(ctx context.Context, w io.Writer, paths []string) error {
	failed := false
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("lint %s: %w", path, err)
		}
		issues, err := definition.LintOpenAPI(ctx, data)
		if err != nil {
			return fmt.Errorf("lint %s: %w", path, err)
		}
		for _, issue := range issues {
			fmt.Fprintf(w, "%s: %s -> %s\n", path, issue.Path, issue.Message)
		}
		failed = failed || len(issues) > 0
	}
	if failed {
		return errLintFailed
	}
	return nil
}

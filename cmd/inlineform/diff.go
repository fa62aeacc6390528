package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-inlineform/pkg/diff"
)

func runDiff(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	patchOnly := fs.Bool("patch", false, "print only the JSON patch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: diff [-patch] OLD NEW")
	}
	return diffDocuments(os.Stdout, fs.Arg(0), fs.Arg(1), *patchOnly)
}

// diffDocuments writes the patch turning the document at oldPath into the one
// at newPath, followed by a unified diff of both. Equal documents print
// nothing.
func diffDocuments(w io.Writer, oldPath, newPath string, patchOnly bool) error {
	oldValue, err := readDocument(oldPath)
	if err != nil {
		return err
	}
	newValue, err := readDocument(newPath)
	if err != nil {
		return err
	}

	patch, err := diff.Diff(oldValue, newValue)
	if err != nil {
		return err
	}
	if !patch.Changed {
		return nil
	}
	data, err := json.MarshalIndent(patch.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return err
	}
	if patchOnly {
		return nil
	}

	text, err := diff.Unified(oldValue, newValue, oldPath, newPath)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%s", text)
	return err
}

// readDocument decodes a JSON or YAML file.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

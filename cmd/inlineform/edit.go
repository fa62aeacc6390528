package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/mattn/go-isatty"

	"github.com/goliatone/go-inlineform/pkg/api"
	"github.com/goliatone/go-inlineform/pkg/breadcrumb"
	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/live"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/terminal"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

var errNoTerminal = errors.New("edit needs an interactive terminal")

func runEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	defID := fs.String("definition", "", "definition id (overrides client.definition)")
	recordID := fs.String("record", "", "record id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recordID == "" {
		return errors.New("-record is required")
	}
	if !interactive(os.Stdin) || !interactive(os.Stdout) {
		return errNoTerminal
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *defID != "" {
		cfg.Client.Definition = *defID
	}
	defs, err := cfg.definitions(ctx)
	if err != nil {
		return err
	}
	def, ok := defs.Get(cfg.Client.Definition)
	if !ok {
		return fmt.Errorf("unknown definition %q (have %s)", cfg.Client.Definition, strings.Join(defs.IDs(), ", "))
	}

	token, err := cfg.accessToken()
	if err != nil {
		return err
	}
	tokens := api.StaticToken(token)
	if token != "" {
		if err := (api.Guard{Tokens: tokens}).Check(); err != nil {
			return err
		}
	}
	client := api.NewClient(
		api.WithEnvironment(cfg.Client.Environment),
		api.WithTokenSource(tokens),
		api.WithParseDates(cfg.Client.ParseDates),
	)

	recordPath := def.RecordPath(*recordID)
	initial, err := fetchRecord(ctx, client, def, recordPath)
	if err != nil {
		return err
	}

	trail := breadcrumb.New(breadcrumb.Crumb{Label: titleOf(def), Href: def.Endpoint})
	trail.Register(breadcrumb.Crumb{Label: *recordID, Href: recordPath})

	lp := loop.New()
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := lp.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("inlineform: loop: %s", err)
		}
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	f, _ := inline.NewForm(lp, api.PatchPersister(client, recordPath),
		inline.WithRollbackOnError(cfg.Client.RollbackOnError),
		inline.WithFormOptions(
			form.WithContext(ctx),
			form.WithInitialValues(initial),
			form.WithValidator(def.Validator()),
		),
	)
	manager := upload.NewManager(lp, upload.PresignTransport{Client: client, Path: def.Uploads})

	var bound *definition.Bound
	onLoop(lp, loopDone, func() { bound, err = definition.Bind(f, def, manager) })
	if err == nil && bound == nil {
		err = errors.New("event loop stopped")
	}
	if err != nil {
		onLoop(lp, loopDone, f.Close)
		return err
	}
	defer func() {
		onLoop(lp, loopDone, func() {
			bound.Close()
			manager.Close()
			f.Close()
		})
		manager.Wait()
	}()

	if !cfg.Live.Disabled {
		endpoint, err := live.SubscribeURL(cfg.liveEndpoint(), liveRecord(recordPath))
		if err != nil {
			return err
		}
		sub := live.Subscribe(ctx, endpoint, f, cfg.liveSettings(token))
		defer sub.Close()
	}

	driver := terminal.NewSurveyDriver()
	if err := driver.Info(ctx, trail.String()); err != nil {
		return err
	}
	session := terminal.NewSession(driver, f, bound)
	if err := session.Run(ctx); err != nil && !errors.Is(err, terminal.ErrAborted) {
		return err
	}
	return nil
}

// onLoop runs fn on the loop and waits for it, unless the loop has stopped.
func onLoop(lp *loop.Loop, loopDone <-chan struct{}, fn func()) {
	done := make(chan struct{})
	lp.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-loopDone:
	}
}

func interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// fetchRecord loads the record, starting from the definition defaults when
// it does not exist yet.
func fetchRecord(ctx context.Context, client *api.Client, def definition.Definition, path string) (values.Tree, error) {
	var tree map[string]any
	err := client.Get(ctx, path, nil, &tree)
	var fetchErr *api.FetchError
	switch {
	case errors.As(err, &fetchErr) && fetchErr.Code() == http.StatusNotFound:
		glog.Infof("inlineform: %s not found, starting from defaults", path)
		return def.Defaults(), nil
	case err != nil:
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// liveRecord maps a record path to the key the reference server publishes
// it under: the path below its records/ route.
func liveRecord(path string) string {
	path = strings.Trim(path, "/")
	if idx := strings.Index(path, "records/"); idx >= 0 {
		return path[idx+len("records/"):]
	}
	return path
}

func titleOf(def definition.Definition) string {
	if def.Title != "" {
		return def.Title
	}
	return def.ID
}

func (c Config) accessToken() (string, error) {
	if c.Client.Token != "" {
		return c.Client.Token, nil
	}
	if c.Client.TokenSubject == "" {
		return "", nil
	}
	if c.Server.Secret == "" {
		return "", errors.New("client.tokenSubject needs server.secret")
	}
	return api.SignHS256(c.Client.TokenSubject, 12*time.Hour, []byte(c.Server.Secret))
}

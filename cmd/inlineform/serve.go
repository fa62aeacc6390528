package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/internal/server"
	"github.com/goliatone/go-inlineform/internal/store"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	opts, err := serverOptions(ctx, cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.resolve(cfg.Server.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(st, opts...)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		glog.Infof("inlineform: listening on %s", cfg.Server.Addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	glog.Info("inlineform: shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serverOptions(ctx context.Context, cfg Config) ([]server.OptionFn, error) {
	opts := []server.OptionFn{
		server.WithBasePath(cfg.Server.BasePath),
		server.WithPublicURL(cfg.Server.PublicURL),
		server.WithSecret([]byte(cfg.Server.Secret)),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithLiveSettings(cfg.liveSettings("")),
	}
	if len(cfg.Server.Collections) == 0 {
		return opts, nil
	}
	defs, err := cfg.definitions(ctx)
	if err != nil {
		return nil, err
	}
	for collection, id := range cfg.Server.Collections {
		def, ok := defs.Get(id)
		if !ok {
			return nil, fmt.Errorf("collection %q: unknown definition %q", collection, id)
		}
		opts = append(opts, server.WithCollection(collection, def))
	}
	return opts, nil
}

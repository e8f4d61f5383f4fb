package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/civicmap/internal/dataset"
	"github.com/vanderheijden86/civicmap/internal/server"
)

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	addr := flagOr(cmd, "addr", a.cfg.Server.Addr)
	geojson := flagOr(cmd, "geojson", a.cfg.Server.GeoJSON)

	db, err := a.openDataset(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := db.Metadata(ctx)
	if err != nil {
		return err
	}
	if meta.CountyCount == 0 && a.cfg.Server.Dataset != "" {
		if meta, err = a.importFile(ctx, db, a.cfg.Server.Dataset); err != nil {
			return err
		}
	}
	if meta.CountyCount == 0 {
		a.logger.Warn("dataset is empty; run civicmap import first", zap.String("database", db.Path()))
	}

	out := cmd.OutOrStdout()
	printOK(out, "Serving civic data on http://%s", addr)
	printField(out, "database", db.Path())
	printField(out, "counties", meta.CountyCount)
	if geojson != "" {
		printField(out, "geojson", geojson)
	}

	h := server.New(db, server.Options{GeoJSON: geojson, Logger: a.logger})
	return server.Serve(ctx, addr, h, a.logger)
}

func (a *app) runImport(cmd *cobra.Command, args []string) error {
	db, err := a.openDataset(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	meta, err := a.importFile(cmd.Context(), db, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printOK(out, "Imported %s", args[0])
	printField(out, "database", db.Path())
	printField(out, "counties", meta.CountyCount)
	printField(out, "states", meta.StateCount)
	if meta.UrbanicitySource != "" {
		printField(out, "urbanicity", meta.UrbanicitySource)
	}
	return nil
}

func (a *app) openDataset(cmd *cobra.Command) (*dataset.Store, error) {
	path := flagOr(cmd, "database", a.cfg.Server.Database)
	if path == "" {
		return nil, fmt.Errorf("no dataset database configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return dataset.Open(path, a.logger)
}

func (a *app) importFile(ctx context.Context, db *dataset.Store, path string) (dataset.Metadata, error) {
	p, err := dataset.ReadPayloadFile(path)
	if err != nil {
		return dataset.Metadata{}, err
	}
	if err := db.Import(ctx, p); err != nil {
		return dataset.Metadata{}, fmt.Errorf("importing %s: %w", path, err)
	}
	a.logger.Info("imported dataset", zap.String("file", path), zap.Int("counties", p.Metadata.CountyCount))
	return db.Metadata(ctx)
}

// flagOr returns the named string flag when it was set, else fallback.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return f.Value.String()
	}
	return fallback
}

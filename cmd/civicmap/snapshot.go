package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/civicmap/internal/datasource"
	"github.com/vanderheijden86/civicmap/pkg/chart"
	"github.com/vanderheijden86/civicmap/pkg/export"
	"github.com/vanderheijden86/civicmap/pkg/geo"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/model"
	"github.com/vanderheijden86/civicmap/pkg/session"
	"github.com/vanderheijden86/civicmap/pkg/slot"
	"github.com/vanderheijden86/civicmap/pkg/store"
)

func (a *app) runSnapshot(cmd *cobra.Command, args []string) error {
	req := export.WizardConfig{
		Path:   flagOr(cmd, "output", "civicmap-snapshot.svg"),
		Format: flagOr(cmd, "format", ""),
		Title:  flagOr(cmd, "title", ""),
	}
	switch {
	case len(args) > 0:
		req.SlotA = args[0]
		if len(args) > 1 {
			req.SlotB = args[1]
		}
	case term.IsTerminal(int(os.Stdin.Fd())):
		answers, err := export.NewWizard().Run()
		if err != nil {
			return err
		}
		req = *answers
	default:
		return errors.New("snapshot needs at least one fips code or state")
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	styles := sessionOptions(a.cfg, session.Compare, a.logger).Styles
	opts, err := buildSnapshot(cmd.Context(), client, a.cfg.Map.GeoJSON, styles, req, a.logger)
	if err != nil {
		return err
	}
	if err := export.SaveSnapshot(opts); err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), "Snapshot written to %s", opts.Path)
	if opts.Index == nil {
		printNote(cmd.OutOrStdout(), "  (no county boundaries; the map is empty)")
	}
	return nil
}

// buildSnapshot fetches the requested entities and the boundaries in
// parallel, then lays them out the way a session would.
func buildSnapshot(ctx context.Context, client *datasource.Client, geoRef string, styles map[slot.Name]highlight.Style, req export.WizardConfig, logger *zap.Logger) (export.SnapshotOptions, error) {
	ids := []struct {
		name slot.Name
		id   string
	}{{slot.A, req.SlotA}, {slot.B, req.SlotB}}

	st := store.New(client, logger)
	entities := make([]*model.Entity, len(ids))
	var idx *geo.Index

	g, gctx := errgroup.WithContext(ctx)
	for i, want := range ids {
		if model.NormalizeID(want.id) == "" {
			continue
		}
		g.Go(func() error {
			e, err := st.Fetch(gctx, want.id)
			if err != nil {
				return fmt.Errorf("slot %s: %w", want.name, err)
			}
			entities[i] = e
			return nil
		})
	}
	g.Go(func() error {
		// Boundaries are optional; a snapshot without them still has charts.
		data, err := datasource.LoadGeoJSON(gctx, client, datasource.DetectGeoSource(geoRef))
		if err != nil {
			logger.Warn("snapshot without boundaries", zap.Error(err))
			return nil
		}
		if idx, err = geo.Load(data); err != nil {
			logger.Warn("snapshot without boundaries", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return export.SnapshotOptions{}, err
	}

	var hopts []highlight.Option
	for name, style := range styles {
		hopts = append(hopts, highlight.WithStyle(name, style))
	}
	coord := highlight.NewCoordinator(highlight.NewSurface(), idx, hopts...)
	opts := export.SnapshotOptions{
		Path:   req.Path,
		Format: req.Format,
		Title:  req.Title,
		Map:    coord.Surface(),
		Index:  idx,
	}
	for i, e := range entities {
		if e == nil {
			continue
		}
		name := ids[i].name
		coord.UpdateMap(name, e)
		opts.Charts = append(opts.Charts, chart.ConfigFor(e, coord.BaseStyle(name).Color))
	}
	if len(opts.Charts) == 0 {
		return opts, errors.New("snapshot needs at least one fips code or state")
	}
	return opts, nil
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/vanderheijden86/civicmap/internal/datasource"
	"github.com/vanderheijden86/civicmap/pkg/config"
	"github.com/vanderheijden86/civicmap/pkg/highlight"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/quest"
	"github.com/vanderheijden86/civicmap/pkg/resolver"
	"github.com/vanderheijden86/civicmap/pkg/session"
	"github.com/vanderheijden86/civicmap/pkg/slot"
	"github.com/vanderheijden86/civicmap/pkg/ui"
	"github.com/vanderheijden86/civicmap/pkg/watcher"
)

func (a *app) runCompare(*cobra.Command, []string) error { return a.runTUI(session.Compare) }

func (a *app) runQuest(*cobra.Command, []string) error { return a.runTUI(session.Quest) }

func (a *app) runTUI(mode session.Mode) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	metrics.SetEnabled(a.debug || metrics.Enabled())

	s := session.New(client, sessionOptions(a.cfg, mode, a.logger))
	defer s.Close()

	src := datasource.DetectGeoSource(a.cfg.Map.GeoJSON)
	a.logger.Info("starting", zap.Stringer("mode", mode), zap.Stringer("geojson", src), zap.String("api", client.BaseURL()))

	opts := ui.Options{
		Session:    s,
		LoadGeo:    func(ctx context.Context) ([]byte, error) { return datasource.LoadGeoJSON(ctx, client, src) },
		SlotColors: slotColors(a.cfg),
		Debug:      a.debug,
		Logger:     a.logger,
	}
	if src.Watchable() && a.cfg.Map.Watch {
		w, err := watcher.NewWatcher(src.Ref, watcher.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
		opts.Watcher = w
	}

	return runTUIProgram(ui.New(opts))
}

func (a *app) client() (*datasource.Client, error) {
	return datasource.NewClient(a.cfg.API.BaseURL,
		datasource.WithTimeout(a.cfg.API.RequestTimeout),
		datasource.WithLogger(a.logger))
}

// sessionOptions maps the config onto a session.
func sessionOptions(cfg config.Config, mode session.Mode, logger *zap.Logger) session.Options {
	names := slot.CompareSlots
	if mode == session.Quest {
		names = slot.QuestSlots
	}
	styles := make(map[slot.Name]highlight.Style, len(names))
	for _, name := range names {
		s := cfg.SlotStyle(string(name))
		styles[name] = highlight.Style{Color: s.Color, Weight: s.Weight, FillOpacity: s.FillOpacity}
	}
	emphasis := highlight.Style{Weight: cfg.Slots.Emphasis.Weight, FillOpacity: cfg.Slots.Emphasis.FillOpacity}
	if emphasis.Weight == 0 && emphasis.FillOpacity == 0 {
		emphasis = highlight.DefaultEmphasis
	}

	opts := session.Options{
		Mode:     mode,
		Styles:   styles,
		Emphasis: &emphasis,
		Resolver: []resolver.Option{
			resolver.WithDebounce(cfg.Search.Debounce),
			resolver.WithMaxResults(cfg.Search.MaxSuggestions),
		},
		Quest: []quest.Option{quest.WithXP(quest.XP{
			HomeCounty: cfg.Quest.HomeCountyXP,
			State:      cfg.Quest.StateXP,
			Challenge:  cfg.Quest.ChallengeXP,
		})},
		Logger: logger,
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		opts.ChartWidth = max(w/len(names)-8, 20)
	}
	return opts
}

func slotColors(cfg config.Config) map[slot.Name]string {
	out := make(map[slot.Name]string, len(cfg.Slots.Styles))
	for name, s := range cfg.Slots.Styles {
		out[slot.Name(name)] = s.Color
	}
	return out
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set CIVICMAP_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("CIVICMAP_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/civicmap/pkg/config"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// WizardConfig holds the answers collected by the snapshot wizard. The last
// answers are saved and offered as defaults next time.
type WizardConfig struct {
	SlotA  string `json:"slot_a"`
	SlotB  string `json:"slot_b,omitempty"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Title  string `json:"title,omitempty"`
}

// Wizard asks for the counties to snapshot and where to write the file.
type Wizard struct {
	config *WizardConfig
}

// NewWizard creates a wizard seeded with the saved answers, if any.
func NewWizard() *Wizard {
	cfg := &WizardConfig{Format: "svg", Path: "civicmap-snapshot.svg"}
	if saved, err := LoadWizardConfig(); err == nil && saved != nil {
		cfg = saved
	}
	return &Wizard{config: cfg}
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run collects the snapshot answers and saves them for the next run.
func (w *Wizard) Run() (*WizardConfig, error) {
	c := w.config
	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Slot A county (FIPS)").
				Value(&c.SlotA).
				Validate(validateCounty(true)),
			huh.NewInput().
				Title("Slot B county (FIPS, optional)").
				Value(&c.SlotB).
				Validate(validateCounty(false)),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Format").
				Options(
					huh.NewOption("SVG (vector)", "svg"),
					huh.NewOption("PNG (raster)", "png"),
				).
				Value(&c.Format),
			huh.NewInput().
				Title("Output file").
				Value(&c.Path),
			huh.NewInput().
				Title("Title (optional)").
				Value(&c.Title),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	w.normalize()
	if err := SaveWizardConfig(c); err != nil {
		return c, fmt.Errorf("save wizard answers: %w", err)
	}
	return c, nil
}

// Config returns the collected answers.
func (w *Wizard) Config() *WizardConfig { return w.config }

func (w *Wizard) normalize() {
	c := w.config
	c.SlotA = model.NormalizeID(c.SlotA)
	c.SlotB = model.NormalizeID(c.SlotB)
	if c.Path == "" {
		c.Path = "civicmap-snapshot." + c.Format
	}
	// Keep the extension in step with the chosen format.
	ext := filepath.Ext(c.Path)
	if want := "." + c.Format; !strings.EqualFold(ext, want) {
		c.Path = strings.TrimSuffix(c.Path, ext) + want
	}
}

func validateCounty(required bool) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			if required {
				return errors.New("a county is required")
			}
			return nil
		}
		if !model.IsCountyID(model.NormalizeID(s)) {
			return fmt.Errorf("%q is not a county FIPS code", s)
		}
		return nil
	}
}

// WizardConfigPath returns the path to the saved answers.
func WizardConfigPath() string {
	return filepath.Join(config.StateDir(), "snapshot-wizard.json")
}

// LoadWizardConfig loads previously saved answers. A missing file is not an
// error.
func LoadWizardConfig() (*WizardConfig, error) {
	data, err := os.ReadFile(WizardConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg WizardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveWizardConfig saves answers for future runs.
func SaveWizardConfig(cfg *WizardConfig) error {
	path := WizardConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

package quest

import (
	"embed"
	"fmt"

	"github.com/leonelquinteros/gotext"
)

//go:embed locale/*.po
var locales embed.FS

// Copy is the narrative text of the quest, keyed by message id.
type Copy struct {
	text map[string]string
}

// LoadCopy parses the embedded catalog for lang, falling back to English.
func LoadCopy(lang string) (*Copy, error) {
	data, err := locales.ReadFile("locale/" + lang + ".po")
	if err != nil {
		data, err = locales.ReadFile("locale/en.po")
		if err != nil {
			return nil, fmt.Errorf("reading quest copy: %w", err)
		}
	}
	return ParseCopy(data), nil
}

// ParseCopy builds copy from a gettext PO document.
func ParseCopy(data []byte) *Copy {
	po := gotext.NewPo()
	po.Parse(data)
	trs := po.GetDomain().GetTranslations()
	text := make(map[string]string, len(trs))
	for id, tr := range trs {
		text[id] = tr.Get()
	}
	return &Copy{text: text}
}

// Get returns the text for id as written in the catalog. Missing ids come
// back as the id itself.
func (c *Copy) Get(id string) string {
	if c != nil {
		if s, ok := c.text[id]; ok && s != "" {
			return s
		}
	}
	return id
}

// Format returns the text for id with vars substituted into its verbs.
func (c *Copy) Format(id string, vars []any) string {
	if len(vars) == 0 {
		return c.Get(id)
	}
	return fmt.Sprintf(c.Get(id), vars...)
}

func mustDefaultCopy() *Copy {
	c, err := LoadCopy("en")
	if err != nil {
		panic(err)
	}
	return c
}

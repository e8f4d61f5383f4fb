package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceType identifies where the county polygons come from.
type SourceType string

const (
	// SourceTypeService is a path served by the data service.
	SourceTypeService SourceType = "service"
	// SourceTypeURL is an absolute http(s) URL.
	SourceTypeURL SourceType = "url"
	// SourceTypeFile is a GeoJSON file on local disk.
	SourceTypeFile SourceType = "file"
)

// GeoSource is a resolved location of the county feature collection.
type GeoSource struct {
	Type SourceType `json:"type"`
	Ref  string     `json:"ref"`
	// ModTime is set for file sources.
	ModTime time.Time `json:"mod_time,omitempty"`
}

func (s GeoSource) String() string {
	return fmt.Sprintf("%s (%s)", s.Ref, s.Type)
}

// Watchable reports whether the source is a local file that can be watched.
func (s GeoSource) Watchable() bool { return s.Type == SourceTypeFile }

// DetectGeoSource classifies ref. Absolute URLs are fetched directly; a
// ref that names an existing file is read from disk; anything else is
// treated as a path on the data service.
func DetectGeoSource(ref string) GeoSource {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return GeoSource{Type: SourceTypeURL, Ref: ref}
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(ref)
		if err != nil {
			abs = ref
		}
		return GeoSource{Type: SourceTypeFile, Ref: abs, ModTime: info.ModTime()}
	}
	return GeoSource{Type: SourceTypeService, Ref: ref}
}

// LoadGeoJSON reads the raw feature collection from src. The client is only
// consulted for service and URL sources and may be nil for files.
func LoadGeoJSON(ctx context.Context, c *Client, src GeoSource) ([]byte, error) {
	switch src.Type {
	case SourceTypeFile:
		data, err := os.ReadFile(src.Ref)
		if err != nil {
			return nil, fmt.Errorf("reading geojson %s: %w", src.Ref, err)
		}
		return data, nil
	case SourceTypeService, SourceTypeURL:
		if c == nil {
			return nil, fmt.Errorf("loading geojson %s: no data service client", src.Ref)
		}
		return c.Fetch(ctx, src.Ref)
	default:
		return nil, fmt.Errorf("unknown geojson source type: %s", src.Type)
	}
}

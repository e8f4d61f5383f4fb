package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/civicmap/pkg/model"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "san fran" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"fips":"06075","display":"San Francisco, CA","population":873965}]`))
	})
	mux.HandleFunc("/api/county/06075", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fips":"06075","name":"San Francisco","state":"CA","urbanicity":"Urban",
			"score":71.2,"metrics":{"membership":10,"volunteer":5},
			"org_types":[{"class":"Arts","count":12}],
			"peers":[{"fips":"06001","name":"Alameda","state":"CA","score":70.1,"urbanicity":"Urban"}]}`))
	})
	mux.HandleFunc("/api/county/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
	mux.HandleFunc("/api/state/CA", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":{"state":"CA","avg_score":55.5,"county_count":58,"top_county":"Marin"}}`))
	})
	mux.HandleFunc("/api/states", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"states":["AL","CA"]}`))
	})
	mux.HandleFunc("/api/compare/state", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state_a") != "CA" || r.URL.Query().Get("state_b") != "AL" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"gaps":{"urban_gap":1.5,"suburban_gap":-2,"rural_gap":0,"avg_score_gap":3.25}}`))
	})
	mux.HandleFunc("/api/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/data/counties.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSearch(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	hits, err := c.Search(context.Background(), "san fran")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "06075", hits[0].ID)
	assert.Equal(t, "San Francisco, CA", hits[0].Display)
}

func TestClientCounty(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	e, err := c.County(context.Background(), "06075")
	require.NoError(t, err)
	assert.Equal(t, model.KindCounty, e.Kind)
	assert.Equal(t, model.Urban, e.Urbanicity)
	assert.Equal(t, 10.0, e.Metrics["membership"])
	require.Len(t, e.Peers, 1)
	assert.Equal(t, "06001", e.Peers[0].ID)
}

func TestClientCountyNotFound(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.County(context.Background(), "99999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
	assert.Equal(t, "/api/county/99999", reqErr.Endpoint)
}

func TestClientStateAndCompare(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	sum, err := c.State(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, 58, sum.CountyCount)

	states, err := c.States(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AL", "CA"}, states)

	gaps, err := c.CompareStates(ctx, "CA", "AL")
	require.NoError(t, err)
	assert.Equal(t, 3.25, gaps.AvgScoreGap)

	_, err = c.CompareStates(ctx, "CA", "CA")
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
}

func TestClientTimeout(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "/api/slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestDetectGeoSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counties.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))

	assert.Equal(t, SourceTypeURL, DetectGeoSource("https://example.com/c.geojson").Type)
	assert.Equal(t, SourceTypeService, DetectGeoSource("/data/counties.geojson").Type)

	src := DetectGeoSource(path)
	assert.Equal(t, SourceTypeFile, src.Type)
	assert.True(t, src.Watchable())

	data, err := LoadGeoJSON(context.Background(), nil, src)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
}

func TestLoadGeoJSONFromService(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	data, err := LoadGeoJSON(context.Background(), c, DetectGeoSource("/data/counties.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")

	_, err = LoadGeoJSON(context.Background(), nil, GeoSource{Type: SourceTypeService, Ref: "/x"})
	assert.Error(t, err)
}

func TestResolveKeepsBasePath(t *testing.T) {
	c, err := NewClient("http://host:5000/civic/")
	require.NoError(t, err)
	assert.Equal(t, "http://host:5000/civic/api/states", c.Resolve("/api/states"))
	assert.Equal(t, "https://cdn.example/c.geojson", c.Resolve("https://cdn.example/c.geojson"))
}

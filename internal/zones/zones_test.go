package zones

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/dggs-stac-export/internal/dggsclient"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

const listing = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"TOUCH","geometry":null,"properties":{"min_lon":-122.3,"min_lat":37.9,"max_lon":-122.0,"max_lat":38.0}},
 {"type":"Feature","id":"FAR","geometry":null,"properties":{"min_longitude":10,"min_latitude":10,"max_longitude":11,"max_latitude":11}},
 {"type":"Feature","id":"NOBOUNDS","geometry":null,"properties":{}},
 {"type":"Feature","id":"PARTIAL","geometry":null,"properties":{"min_lon":50,"max_lon":51}},
 {"type":"Feature","geometry":null,"properties":{"min_lon":-123,"min_lat":37,"max_lon":-122,"max_lat":38}},
 {"type":"Feature","id":"GAP","geometry":null,"properties":{"min_lon":-122.29,"min_lat":37.91,"max_lon":-122.0,"max_lat":38.0}}
]}`

func listingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("zone-level") == "" {
			t.Errorf("zone-level missing from %s", r.URL)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newResolver(t *testing.T, srv *httptest.Server, opts ...Option) *Resolver {
	t.Helper()
	c := dggsclient.New(nil, srv.Client(), dggsclient.Config{BaseURL: srv.URL, Collection: "SRTM"})
	r, err := New(nil, c, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestListZonesForExtent_OverlapAndMissingBounds(t *testing.T) {
	srv, _ := listingServer(t, http.StatusOK, listing)
	r := newResolver(t, srv)

	ext := extent.MustNew(-122.5, 37.7, -122.3, 37.9)
	got, err := r.ListZonesForExtent(context.Background(), ext, "rHEALPix", 2)
	if err != nil {
		t.Fatalf("ListZonesForExtent: %v", err)
	}
	want := []string{"TOUCH", "NOBOUNDS", "PARTIAL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("zones=%v want %v", got, want)
	}
}

func TestListZonesForExtent_MemoizesListing(t *testing.T) {
	srv, hits := listingServer(t, http.StatusOK, listing)
	r := newResolver(t, srv, WithListingCache(8))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.ListZonesForExtent(ctx, extent.World(), "rHEALPix", 2); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("listing fetched %d times, want 1", n)
	}
	if _, err := r.ListZonesForExtent(ctx, extent.World(), "rHEALPix", 3); err != nil {
		t.Fatalf("level 3: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("different level should refetch, hits=%d", n)
	}
}

type fixedBounds map[string]extent.GeoExtent

func (f fixedBounds) ZoneBounds(id string) (extent.GeoExtent, bool) {
	b, ok := f[id]
	return b, ok
}

func TestListZonesForExtent_BoundsFallback(t *testing.T) {
	srv, _ := listingServer(t, http.StatusOK, listing)
	r := newResolver(t, srv, WithBoundsFallback(fixedBounds{
		"NOBOUNDS": extent.MustNew(100, 0, 101, 1),
	}))

	got, err := r.ListZonesForExtent(context.Background(), extent.MustNew(-122.5, 37.7, -122.3, 37.9), "H3", 2)
	if err != nil {
		t.Fatalf("ListZonesForExtent: %v", err)
	}
	want := []string{"TOUCH", "PARTIAL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("zones=%v want %v", got, want)
	}
}

func TestListZonesForExtent_ListingErrorsAreHard(t *testing.T) {
	srv, _ := listingServer(t, http.StatusNotFound, "nope")
	r := newResolver(t, srv)
	_, err := r.ListZonesForExtent(context.Background(), extent.World(), "rHEALPix", 2)
	if !dggsclient.IsNotFound(err) {
		t.Fatalf("want 404 status error, got %v", err)
	}

	bad, _ := listingServer(t, http.StatusOK, `{"type":"Feature"}`)
	r = newResolver(t, bad)
	_, err = r.ListZonesForExtent(context.Background(), extent.World(), "rHEALPix", 2)
	var de *dggsclient.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestParseListing_NumericIDsAndStringBounds(t *testing.T) {
	zs, err := ParseListing([]byte(`{"type":"FeatureCollection","features":[
	 {"type":"Feature","id":42,"geometry":null,"properties":{"min_lat":"1","max_lat":"2","min_lon":"3","max_lon":"4"}}]}`))
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(zs) != 1 || zs[0].ID != "42" || zs[0].Bounds == nil {
		t.Fatalf("unexpected zones: %+v", zs)
	}
	if zs[0].Bounds.MinLon() != 3 || zs[0].Bounds.MaxLat() != 2 {
		t.Fatalf("bounds=%s", zs[0].Bounds)
	}
}

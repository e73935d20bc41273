package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/dggs-stac-export/internal/coverage"
)

var testDefaults = Defaults{System: "rHEALPix", Level: 2, MaxWidth: 180, MaxHeight: 90}

type fakeService struct {
	lastQ   Query
	summary coverage.Summary
	zones   []string
	err     error
}

func (f *fakeService) Summary(_ context.Context, q Query) coverage.Summary {
	f.lastQ = q
	return f.summary
}

func (f *fakeService) Zones(_ context.Context, q Query) ([]string, error) {
	f.lastQ = q
	return f.zones, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestParseQuery(t *testing.T) {
	cases := []struct {
		name    string
		target  string
		wantErr string
		check   func(t *testing.T, q Query)
	}{
		{
			name:   "defaults",
			target: "/coverage?bbox=11,55,12,56",
			check: func(t *testing.T, q Query) {
				if q.System != "rHEALPix" || q.Level != 2 || q.ZoneID != "" {
					t.Fatalf("q=%+v", q)
				}
				if got := q.Extent.BBox(); got[0] != 11 || got[3] != 56 {
					t.Fatalf("bbox=%v", got)
				}
			},
		},
		{
			name:   "explicit params and crs suffix",
			target: "/coverage?bbox=11,55,12,56,EPSG:4326&dggs=H3&zone=8508&level=4",
			check: func(t *testing.T, q Query) {
				if q.System != "H3" || q.Level != 4 || q.ZoneID != "8508" {
					t.Fatalf("q=%+v", q)
				}
			},
		},
		{
			name:   "latitude clamped",
			target: "/coverage?bbox=0,80,10,90",
			check: func(t *testing.T, q Query) {
				if q.Extent.MaxLat() > 85.06 {
					t.Fatalf("maxLat=%v", q.Extent.MaxLat())
				}
			},
		},
		{name: "missing bbox", target: "/coverage", wantErr: "missing required parameter"},
		{name: "three values", target: "/coverage?bbox=1,2,3", wantErr: "expected 4"},
		{name: "projected crs", target: "/coverage?bbox=1,2,3,4,EPSG:3857", wantErr: "EPSG:4326"},
		{name: "inverted", target: "/coverage?bbox=12,55,11,56", wantErr: "min must not exceed max"},
		{name: "out of range", target: "/coverage?bbox=-200,0,0,10", wantErr: "within"},
		{name: "too wide", target: "/coverage?bbox=-170,0,170,10", wantErr: "extent too large"},
		{name: "unknown system", target: "/coverage?bbox=1,2,3,4&dggs=Hexy", wantErr: "unknown DGGS"},
		{name: "bad level", target: "/coverage?bbox=1,2,3,4&level=-1", wantErr: "invalid level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := ParseQuery(httptest.NewRequest(http.MethodGet, tc.target, nil), testDefaults)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err=%v want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			tc.check(t, q)
		})
	}
}

func TestHandleCoverage_StatusMapping(t *testing.T) {
	cases := []struct {
		summary coverage.Summary
		want    int
	}{
		{coverage.Summary{Success: true, ZoneCount: 2, FeatureCount: 5, Zones: []string{"A", "B"}}, http.StatusOK},
		{coverage.Summary{Success: false, Error: coverage.ErrNoZonesFound.Error()}, http.StatusNotFound},
		{coverage.Summary{Success: false, Error: "upstream: boom"}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		svc := &fakeService{summary: tc.summary}
		rr := get(t, HandleCoverage(discard(), testDefaults, svc), "/coverage?bbox=11,55,12,56&zone=R05")
		if rr.Code != tc.want {
			t.Fatalf("summary=%+v status=%d want %d", tc.summary, rr.Code, tc.want)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type=%q", ct)
		}
		var got coverage.Summary
		if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Success != tc.summary.Success || got.FeatureCount != tc.summary.FeatureCount {
			t.Fatalf("got %+v", got)
		}
		if svc.lastQ.ZoneID != "R05" {
			t.Fatalf("zone not forwarded: %+v", svc.lastQ)
		}
	}
}

func TestHandleCoverage_BadRequestSkipsService(t *testing.T) {
	svc := &fakeService{}
	rr := get(t, HandleCoverage(discard(), testDefaults, svc), "/coverage?bbox=oops")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	if svc.lastQ.System != "" {
		t.Fatalf("service should not be called")
	}
}

func TestHandleZones(t *testing.T) {
	svc := &fakeService{zones: []string{"R05_08", "R05_09"}}
	rr := get(t, HandleZones(discard(), testDefaults, svc), "/zones?bbox=11,55,12,56&level=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var got zonesResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.System != "rHEALPix" || got.Level != 3 || len(got.Zones) != 2 {
		t.Fatalf("got %+v", got)
	}

	empty := get(t, HandleZones(discard(), testDefaults, &fakeService{}), "/zones?bbox=11,55,12,56")
	if !strings.Contains(empty.Body.String(), `"zones":[]`) {
		t.Fatalf("empty listing should encode as [], got %s", empty.Body.String())
	}

	failing := get(t, HandleZones(discard(), testDefaults, &fakeService{err: errors.New("down")}), "/zones?bbox=11,55,12,56")
	if failing.Code != http.StatusBadGateway {
		t.Fatalf("status=%d want 502", failing.Code)
	}
}

func TestHandleSystems(t *testing.T) {
	rr := get(t, HandleSystems(), "/systems")
	if !strings.Contains(rr.Body.String(), "rHEALPix-R12") || !strings.Contains(rr.Body.String(), "H3") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

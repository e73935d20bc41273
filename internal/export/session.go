// Package export turns map layers into a STAC catalog with COP metadata and packages it.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dggs-stac-export/internal/archive"
	"github.com/mohammed-shakir/dggs-stac-export/internal/atomicfile"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
	"github.com/mohammed-shakir/dggs-stac-export/internal/events"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
	mylog "github.com/mohammed-shakir/dggs-stac-export/internal/logger"
	"github.com/mohammed-shakir/dggs-stac-export/internal/stac"
)

const (
	StacDirName       = "stac_cop_export"
	AssetsDirName     = "assets"
	CoverageLayerName = "dggs_coverage"
	fgbMediaType      = "application/vnd.flatgeobuf"
)

var ErrNoItems = errors.New("no layers exported")

// CoverageQuerier fetches DGGS features for an extent.
type CoverageQuerier interface {
	QueryCoverage(ctx context.Context, ext extent.GeoExtent, system, zoneID string) (*geojson.FeatureCollection, error)
}

type Publisher interface {
	Publish(ev events.ExportCompleted)
}

// LayerError records a layer that failed to export. It never stops the batch.
type LayerError struct {
	Layer string
	Err   error
}

func (e *LayerError) Error() string { return fmt.Sprintf("export layer %q: %v", e.Layer, e.Err) }
func (e *LayerError) Unwrap() error { return e.Err }

type BatchResult struct {
	ItemPaths []string
	Errors    []*LayerError
}

func (b BatchResult) Succeeded() int { return len(b.ItemPaths) }

// Err joins the per-layer failures, or returns nil.
func (b BatchResult) Err() error {
	errs := make([]error, len(b.Errors))
	for i, e := range b.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Session owns one export run. It is not safe for concurrent use.
type Session struct {
	logger    *slog.Logger
	id        string
	outputDir string
	stacDir   string
	assetsDir string

	reproj      extent.Reprojector
	writer      VectorWriter
	synth       *stac.Synthesizer
	coverage    CoverageQuerier
	publisher   Publisher
	flatgeobuf  bool
	copyImagery bool
	maxWidth    float64
	maxHeight   float64
	now         func() time.Time

	items []stac.Item
	names map[string]int
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithReprojector(r extent.Reprojector) Option {
	return func(s *Session) { s.reproj = r }
}

func WithVectorWriter(w VectorWriter) Option {
	return func(s *Session) { s.writer = w }
}

func WithSynthesizer(syn *stac.Synthesizer) Option {
	return func(s *Session) { s.synth = syn }
}

func WithCoverage(c CoverageQuerier) Option {
	return func(s *Session) { s.coverage = c }
}

func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithFlatGeobuf adds a FlatGeobuf copy of each vector layer as a second asset.
func WithFlatGeobuf(on bool) Option {
	return func(s *Session) { s.flatgeobuf = on }
}

// WithImageryCopy copies raster sources into the assets directory instead of referencing them.
func WithImageryCopy(on bool) Option {
	return func(s *Session) { s.copyImagery = on }
}

// WithExtentLimits bounds the extent used for coverage enrichment.
func WithExtentLimits(maxWidth, maxHeight float64) Option {
	return func(s *Session) {
		s.maxWidth, s.maxHeight = maxWidth, maxHeight
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession prepares {outputDir}/stac_cop_export/assets.
func NewSession(outputDir string, opts ...Option) (*Session, error) {
	s := &Session{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		id:        uuid.NewString(),
		outputDir: outputDir,
		stacDir:   filepath.Join(outputDir, StacDirName),
		reproj:    extent.Mercator{},
		writer:    GeoJSONWriter{},
		synth:     stac.New(),
		maxWidth:  extent.DefaultMaxWidth,
		maxHeight: extent.DefaultMaxHeight,
		now:       time.Now,
		names:     map[string]int{},
	}
	s.assetsDir = filepath.Join(s.stacDir, AssetsDirName)
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(s.assetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dirs: %w", err)
	}
	return s, nil
}

func (s *Session) ID() string      { return s.id }

// logCtx tags ctx with this session, so every line carries export_id.
func (s *Session) logCtx(ctx context.Context) context.Context {
	return mylog.WithExport(mylog.WithComponent(ctx, "export"), s.id)
}

func (s *Session) StacDir() string { return s.stacDir }

// Items returns the items exported so far, in export order.
func (s *Session) Items() []stac.Item { return append([]stac.Item(nil), s.items...) }

// ExportLayer writes the layer's asset and STAC Item and returns the item path.
func (s *Session) ExportLayer(ctx context.Context, layer Layer, cop stac.COPMetadata) (string, error) {
	path, err := s.exportLayer(ctx, layer, cop)
	observability.IncExportedLayer(layer.Kind().String(), err)
	if err != nil {
		return "", &LayerError{Layer: layer.LayerName(), Err: err}
	}
	return path, nil
}

func (s *Session) exportLayer(ctx context.Context, layer Layer, cop stac.COPMetadata) (string, error) {
	ctx = mylog.WithLayer(s.logCtx(ctx), layer.LayerName())
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bound, err := layer.Bounds()
	if err != nil {
		return "", err
	}
	ext, err := extent.ReprojectToWGS84(s.reproj, bound, layer.SourceCRS())
	if err != nil {
		return "", err
	}

	name := s.uniqueName(stac.SanitizeID(layer.LayerName()))
	extraAssets := map[string]stac.Asset{}

	var href string
	switch l := layer.(type) {
	case *VectorLayer:
		href, err = s.writeVector(ctx, l, name, extraAssets)
	case *ImageryLayer:
		href, err = s.placeImagery(l, name)
	default:
		err = fmt.Errorf("unsupported layer type %T", layer)
	}
	if err != nil {
		return "", err
	}

	fileName := name + ".json"
	item := s.synth.MakeItem(ext, layer.Kind(), href, layer.LayerName(), cop, "./"+fileName)
	for k, a := range extraAssets {
		item.Assets[k] = a
	}

	itemPath := filepath.Join(s.stacDir, fileName)
	if err := atomicfile.WriteJSON(itemPath, item); err != nil {
		return "", err
	}
	s.items = append(s.items, item)
	s.logger.InfoContext(ctx, "layer exported",
		"kind", layer.Kind().String(),
		"item", itemPath)
	return itemPath, nil
}

func (s *Session) writeVector(ctx context.Context, l *VectorLayer, name string, extra map[string]stac.Asset) (string, error) {
	dest := filepath.Join(s.assetsDir, name+".geojson")
	if err := s.writer.WriteGeoJSON(l, dest); err != nil {
		return "", fmt.Errorf("write geojson: %w", err)
	}
	if s.flatgeobuf && extent.IsWGS84(l.SourceCRS()) {
		fgb := filepath.Join(s.assetsDir, name+".fgb")
		switch err := writeFlatGeobuf(fgb, l.Features); {
		case errors.Is(err, errNoGeometries):
			s.logger.DebugContext(ctx, "skipping flatgeobuf asset")
		case err != nil:
			return "", err
		default:
			extra["fgb"] = stac.Asset{
				Href:      s.href(fgb),
				Title:     l.Name + " FlatGeobuf",
				Type:      fgbMediaType,
				Roles:     []string{"data"},
				AssetType: stac.KindFeature.COPType(),
			}
		}
	}
	return s.href(dest), nil
}

func (s *Session) placeImagery(l *ImageryLayer, name string) (string, error) {
	if !s.copyImagery {
		if s.inside(l.Source) {
			return s.href(l.Source), nil
		}
		return l.Source, nil
	}
	dest := filepath.Join(s.assetsDir, name+strings.ToLower(filepath.Ext(l.Source)))
	src, err := os.Open(l.Source)
	if err != nil {
		return "", fmt.Errorf("open imagery: %w", err)
	}
	defer func() { _ = src.Close() }()
	if err := atomicfile.Write(dest, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		return "", fmt.Errorf("copy imagery: %w", err)
	}
	return s.href(dest), nil
}

// ExportAll exports every layer, continuing past failures.
func (s *Session) ExportAll(ctx context.Context, layers []Layer, cop stac.COPMetadata) BatchResult {
	var res BatchResult
	for _, l := range layers {
		p, err := s.ExportLayer(ctx, l, cop)
		if err != nil {
			var le *LayerError
			if !errors.As(err, &le) {
				le = &LayerError{Layer: l.LayerName(), Err: err}
			}
			s.logger.WarnContext(mylog.WithLayer(s.logCtx(ctx), l.LayerName()), "layer export failed", "err", le.Err)
			res.Errors = append(res.Errors, le)
			continue
		}
		res.ItemPaths = append(res.ItemPaths, p)
	}
	return res
}

// AddCoverageLayer exports DGGS features covering the union of the exported layers as an extra
// vector layer. zoneID restricts the query to one zone.
func (s *Session) AddCoverageLayer(ctx context.Context, system, zoneID string, cop stac.COPMetadata) (string, error) {
	if s.coverage == nil {
		return "", &LayerError{Layer: CoverageLayerName, Err: errors.New("no coverage source configured")}
	}
	exts := make([]extent.GeoExtent, 0, len(s.items))
	for _, it := range s.items {
		if len(it.BBox) != 4 {
			continue
		}
		if e, err := extent.New(it.BBox[0], it.BBox[1], it.BBox[2], it.BBox[3]); err == nil {
			exts = append(exts, e)
		}
	}
	union, ok := extent.CombineAll(exts...)
	if !ok {
		return "", &LayerError{Layer: CoverageLayerName, Err: ErrNoItems}
	}
	query := extent.ClampToDGGSBounds(union)
	if err := extent.ValidateSize(query, s.maxWidth, s.maxHeight); err != nil {
		return "", &LayerError{Layer: CoverageLayerName, Err: err}
	}

	fc, err := s.coverage.QueryCoverage(ctx, query, system, zoneID)
	if err != nil {
		return "", &LayerError{Layer: CoverageLayerName, Err: err}
	}

	cop.DGGSCRS = system
	if zoneID != "" {
		cop.DGGSZoneID = zoneID
	}
	b := query.Bound()
	return s.ExportLayer(ctx, &VectorLayer{
		Name:     CoverageLayerName,
		CRS:      extent.WGS84,
		Features: fc,
		Extent:   &b,
	}, cop)
}

// CreateCollection writes collection.json over every item exported so far.
func (s *Session) CreateCollection(id, title, description string) (string, error) {
	if len(s.items) == 0 {
		return "", ErrNoItems
	}
	c := s.synth.MakeCollection(id, title, description, s.items)
	path := filepath.Join(s.stacDir, stac.CollectionFile)
	if err := atomicfile.WriteJSON(path, c); err != nil {
		return "", fmt.Errorf("write collection: %w", err)
	}
	s.logger.InfoContext(s.logCtx(context.Background()), "collection written", "path", path, "items", len(s.items))
	return path, nil
}

// BuildArchive zips the STAC directory next to it and returns the archive path and SHA-256.
func (s *Session) BuildArchive() (string, string, error) {
	zipPath, sum, err := archive.Build(s.stacDir, s.outputDir, archive.Label(s.now()))
	if err != nil {
		return "", "", err
	}
	s.logger.InfoContext(s.logCtx(context.Background()), "archive written", "path", zipPath, "sha256", sum)
	return zipPath, sum, nil
}

// uniqueName reserves every name it hands out, so a literal "a_2" cannot collide with a
// generated one.
func (s *Session) uniqueName(base string) string {
	name := base
	for n := s.names[base] + 1; s.names[name] > 0; n++ {
		name = base + "_" + strconv.Itoa(n)
		s.names[base] = n
	}
	s.names[name]++
	return name
}

// href makes path relative to the STAC directory with forward slashes.
func (s *Session) href(path string) string {
	rel, err := filepath.Rel(s.stacDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (s *Session) inside(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir, err := filepath.Abs(s.stacDir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	return err == nil && !strings.HasPrefix(rel, "..")
}

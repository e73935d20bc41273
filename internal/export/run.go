package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/dggs-stac-export/internal/events"
	mylog "github.com/mohammed-shakir/dggs-stac-export/internal/logger"
	"github.com/mohammed-shakir/dggs-stac-export/internal/stac"
)

const DefaultCollectionID = "stac-cop-export"

type Request struct {
	Layers []Layer
	COP    stac.COPMetadata

	CollectionID          string
	CollectionTitle       string
	CollectionDescription string

	// Coverage adds the DGGS enrichment layer when set.
	Coverage   bool
	DGGSSystem string
	ZoneID     string

	CreateZip bool
}

type Report struct {
	ExportID       string
	Batch          BatchResult
	CoveragePath   string
	CollectionPath string
	ArchivePath    string
	SHA256         string
}

// Run exports the layers, optionally adds coverage, then writes the collection and archive.
// Layer failures, including the coverage layer, are reported in Report.Batch. Collection and
// archive failures end the run with an error.
func (s *Session) Run(ctx context.Context, req Request) (Report, error) {
	rep := Report{ExportID: s.id}
	rep.Batch = s.ExportAll(ctx, req.Layers, req.COP)

	if req.Coverage && rep.Batch.Succeeded() > 0 {
		p, err := s.AddCoverageLayer(ctx, req.DGGSSystem, req.ZoneID, req.COP)
		if err != nil {
			var le *LayerError
			if !errors.As(err, &le) {
				le = &LayerError{Layer: CoverageLayerName, Err: err}
			}
			s.logger.WarnContext(mylog.WithLayer(s.logCtx(ctx), CoverageLayerName), "coverage enrichment failed", "err", le.Err)
			rep.Batch.Errors = append(rep.Batch.Errors, le)
		} else {
			rep.CoveragePath = p
			rep.Batch.ItemPaths = append(rep.Batch.ItemPaths, p)
		}
	}

	if rep.Batch.Succeeded() == 0 {
		if err := rep.Batch.Err(); err != nil {
			return rep, fmt.Errorf("%w: %w", ErrNoItems, err)
		}
		return rep, ErrNoItems
	}

	id := req.CollectionID
	if id == "" {
		id = DefaultCollectionID
	}
	title := req.CollectionTitle
	if title == "" {
		title = id
	}
	cp, err := s.CreateCollection(id, title, req.CollectionDescription)
	if err != nil {
		return rep, err
	}
	rep.CollectionPath = cp

	if req.CreateZip {
		zp, sum, err := s.BuildArchive()
		if err != nil {
			return rep, err
		}
		rep.ArchivePath, rep.SHA256 = zp, sum
	}

	if s.publisher != nil {
		s.publisher.Publish(events.ExportCompleted{
			ExportID:   s.id,
			Collection: id,
			Items:      len(s.items),
			Failed:     len(rep.Batch.Errors),
			Archive:    rep.ArchivePath,
			SHA256:     rep.SHA256,
			At:         s.now().UTC(),
		})
	}
	return rep, nil
}

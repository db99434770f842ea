package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/amiup/amiup/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrentCopies bounds simultaneously in-flight region copies.
const DefaultMaxConcurrentCopies = 32

type regionResult struct {
	region  string
	imageID string
	err     error
}

// replicate copies the image to every target region on a bounded worker pool
// and returns the aggregated region to image id map, the source region
// pre-seeded. Workers hand their result to a single collector instead of
// writing a shared map. Any region failure fails the whole stage with every
// failing region identified; a partial map is never returned as success.
func (m *Machine) replicate(ctx context.Context, imageID, name, sourceRegion string, targetRegions []string, public bool) (map[string]string, error) {
	limit := m.maxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrentCopies
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make(chan regionResult, len(targetRegions))
	for _, region := range targetRegions {
		g.Go(func() error {
			id, err := m.copyToRegion(gctx, region, imageID, name, sourceRegion, public)
			results <- regionResult{region: region, imageID: id, err: err}
			// Returning the error cancels the remaining waits promptly; the
			// per-region detail is reported from the collected results below.
			return err
		})
	}

	groupErr := g.Wait()
	close(results)

	images := make(map[string]string, len(targetRegions)+1)
	images[sourceRegion] = imageID

	var regionErrs []error
	for res := range results {
		if res.err != nil {
			regionErrs = append(regionErrs, errors.Wrapf(res.err, "region %s", res.region))
			continue
		}
		images[res.region] = res.imageID
	}

	if len(regionErrs) > 0 {
		return nil, stderrors.Join(regionErrs...)
	}
	if groupErr != nil {
		return nil, groupErr
	}

	slog.Info("replication_complete", "image_id", imageID, "regions", len(images), "execution_id", m.executionID)
	return images, nil
}

func (m *Machine) copyToRegion(ctx context.Context, region, imageID, name, sourceRegion string, public bool) (string, error) {
	rc, err := m.regional(ctx, region)
	if err != nil {
		return "", errors.Wrap(err, "failed to create regional client")
	}
	return rc.CopyImageFrom(ctx, imageID, sourceRegion, name, public)
}

package patch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SizeReport is the outcome of probing every group of a run.
type SizeReport struct {
	Total    int64
	PerGroup map[string]int64
	// Groups holds the probed labels in their configured order, without duplicates.
	Groups []string
}

// UpToDate reports whether there is nothing to download.
func (r SizeReport) UpToDate() bool {
	return r.Total == 0
}

// Pending returns the groups that have bytes to download, in order.
func (r SizeReport) Pending() []string {
	pending := make([]string, 0, len(r.Groups))

	for _, group := range r.Groups {
		if r.PerGroup[group] > 0 {
			pending = append(pending, group)
		}
	}

	return pending
}

// SizeAggregator probes a list of groups and sums their sizes.
type SizeAggregator struct {
	probe       *SizeProbe
	maxParallel int
}

// NewSizeAggregator creates an aggregator running at most maxParallel probes
// at a time. A non-positive limit means one probe at a time.
func NewSizeAggregator(probe *SizeProbe, maxParallel int) *SizeAggregator {
	if maxParallel < 1 {
		maxParallel = 1
	}

	return &SizeAggregator{probe: probe, maxParallel: maxParallel}
}

// ComputeTotal probes every group and returns their summed size. The first
// probe failure fails the whole computation with an *AggregationFailedError.
func (a *SizeAggregator) ComputeTotal(ctx context.Context, groups []string) (SizeReport, error) {
	unique := uniqueGroups(groups)
	sizes := make([]int64, len(unique))

	wg, ctx := errgroup.WithContext(ctx)
	wg.SetLimit(a.maxParallel)

	for i, group := range unique {
		wg.Go(func() error {
			size, err := a.probe.Probe(ctx, group)
			if err != nil {
				return err
			}

			sizes[i] = size

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return SizeReport{}, &AggregationFailedError{Err: err}
	}

	report := SizeReport{
		PerGroup: make(map[string]int64, len(unique)),
		Groups:   unique,
	}

	for i, group := range unique {
		report.PerGroup[group] = sizes[i]
		report.Total += sizes[i]
	}

	return report, nil
}

func uniqueGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	unique := make([]string, 0, len(groups))

	for _, group := range groups {
		if _, ok := seen[group]; ok {
			continue
		}

		seen[group] = struct{}{}
		unique = append(unique, group)
	}

	return unique
}

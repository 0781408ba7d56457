package patch

import (
	"context"
	"fmt"

	"github.com/italolelis/asset_patcher/internal/delivery"
)

// SizeProbe asks the delivery backend how many bytes a group still needs.
type SizeProbe struct {
	backend delivery.Backend
}

func NewSizeProbe(backend delivery.Backend) *SizeProbe {
	return &SizeProbe{backend: backend}
}

// Probe returns the pending byte size of group. Any backend failure, and any
// negative answer, is reported as a *BackendUnavailableError.
func (p *SizeProbe) Probe(ctx context.Context, group string) (int64, error) {
	size, err := p.backend.RemoteSize(ctx, group)
	if err != nil {
		return 0, &BackendUnavailableError{Group: group, Err: err}
	}

	if size < 0 {
		return 0, &BackendUnavailableError{Group: group, Err: fmt.Errorf("backend reported negative size %d", size)}
	}

	return size, nil
}

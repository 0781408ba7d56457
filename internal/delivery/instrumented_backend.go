package delivery

import (
	"context"

	"github.com/italolelis/asset_patcher/internal/telemetry"
)

// InstrumentedBackend wraps Backend with telemetry.
type InstrumentedBackend struct {
	backend     Backend
	telemetry   *telemetry.Telemetry
	backendType string
}

// NewInstrumentedBackend creates a new instrumented backend.
func NewInstrumentedBackend(backend Backend, tel *telemetry.Telemetry, backendType string) *InstrumentedBackend {
	return &InstrumentedBackend{
		backend:     backend,
		telemetry:   tel,
		backendType: backendType,
	}
}

// RemoteSize resolves a group's pending size with telemetry.
func (b *InstrumentedBackend) RemoteSize(ctx context.Context, group string) (int64, error) {
	var result int64

	var err error

	instrumentedErr := b.telemetry.InstrumentBackendOperation(ctx, b.backendType, "remote_size", group, func(ctx context.Context) error {
		result, err = b.backend.RemoteSize(ctx, group)

		return err
	})

	if instrumentedErr != nil {
		return 0, instrumentedErr
	}

	return result, nil
}

// StartTransfer starts a group transfer with telemetry.
func (b *InstrumentedBackend) StartTransfer(ctx context.Context, group string) (Handle, error) {
	var result Handle

	var err error

	instrumentedErr := b.telemetry.InstrumentBackendOperation(ctx, b.backendType, "start_transfer", group, func(ctx context.Context) error {
		result, err = b.backend.StartTransfer(ctx, group)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

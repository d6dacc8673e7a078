package capture

import (
	"context"
	"errors"
)

// FakeRecorder returns a preset recording. Used in tests and the demo CLI.
type FakeRecorder struct {
	Recording Recording
	StartErr  error
	StopErr   error

	started bool
}

func (f *FakeRecorder) Start(_ context.Context) error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started = true
	return nil
}

func (f *FakeRecorder) Stop(_ context.Context) (*Recording, error) {
	if f.StopErr != nil {
		return nil, f.StopErr
	}
	if !f.started {
		return nil, errors.New("capture not started")
	}
	f.started = false
	rec := f.Recording
	return &rec, nil
}

package engine

import (
	"fmt"

	"github.com/danieljhkim/gridmix/internal/mix"
)

// Mixes lists the mixes of a declaration with their shares normalized.
func (e *Engine) Mixes(req *MixesRequest) (*MixesResult, error) {
	if req.MixFile == "" {
		return nil, fmt.Errorf("%w: mix file is required", ErrValidation)
	}
	mixes, err := e.readMixes(req.MixFile, req.Defaults.Defaults())
	if err != nil {
		return nil, err
	}
	for i := range mixes {
		mixes[i].Shares = mixes[i].Shares.Normalize()
		mixes[i].EVSplit = mixes[i].EVSplit.Normalize()
	}
	return &MixesResult{Mixes: mixes}, nil
}

// readMixes decodes the mix declaration at path through the engine's FS.
func (e *Engine) readMixes(path string, defaults mix.Defaults) ([]mix.Mix, error) {
	data, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mix file: %w", err)
	}
	mixes, err := mix.Parse(data, defaults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mixes, nil
}

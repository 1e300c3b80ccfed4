package maintenance

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/keynodes"
	"github.com/cognicore/kbinfer/pkg/kbinfer/verdict"
)

// Cleaner removes satisfiability records left behind by inference runs.
type Cleaner struct {
	Store    kb.KB
	Keynodes *keynodes.Keynodes
	Logger   *zap.Logger
}

// Result summarizes the cleaning run.
type Result struct {
	Scanned int
	Removed int
}

// Clean purges the verdicts recorded for model, or every verdict when model
// is the invalid handle.
func (c *Cleaner) Clean(ctx context.Context, model kb.Addr) (Result, error) {
	var res Result
	if c.Store == nil || c.Keynodes == nil {
		return res, errors.New("cleaner: invalid configuration")
	}
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	records, err := verdict.List(ctx, c.Store, c.Keynodes, model)
	if err != nil {
		return res, err
	}
	res.Scanned = len(records)

	res.Removed, err = verdict.Purge(ctx, c.Store, c.Keynodes, model)
	if err != nil {
		return res, err
	}
	log.Info("verdicts purged",
		zap.String("model", kb.Label(ctx, c.Store, model)),
		zap.Int("removed", res.Removed))
	return res, nil
}

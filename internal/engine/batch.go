package engine

import (
	"context"

	"go.uber.org/zap"
)

// Run processes every DDL file in order and folds the outcomes into a
// Summary. A table failing on its own never stops the batch; only an error
// returned by Process does, in which case the summary gathered so far is
// returned with it.
func (a *Alterator) Run(ctx context.Context, files []string, onProgress func()) (*Summary, error) {
	summary := &Summary{Validation: a.opts.Validate, Force: a.opts.Force}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var outcome Outcome
		data, err := a.fetcher.Download(ctx, name)
		if err != nil {
			a.log.Warn("failed to read DDL file", zap.String("file", name), zap.Error(err))
			outcome = failed(Outcome{File: name}, "ReadFailed", err)
		} else {
			outcome, err = a.Process(ctx, File{Name: name, DDL: string(data)})
		}

		summary.Add(outcome)
		if onProgress != nil {
			onProgress()
		}
		if err != nil {
			return summary, err
		}
	}

	a.log.Info("batch complete",
		zap.Int("analyzed", summary.Stats.Analyzed),
		zap.Int("updates", summary.Stats.Updates),
		zap.Int("skipped", summary.Stats.Skipped),
		zap.Int("new", summary.Stats.New),
		zap.Int("errored", summary.Stats.Errored),
		zap.Int("identical", summary.Stats.Identical),
	)
	return summary, nil
}

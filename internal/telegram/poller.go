package telegram

import (
	"context"
	"log/slog"
	"time"
)

type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller pulls updates with long polling, for deployments without a public
// webhook URL.
type Poller struct {
	source  UpdateSource
	sink    Sink
	timeout time.Duration
	backoff time.Duration
	logger  *slog.Logger
}

func NewPoller(source UpdateSource, sink Sink, timeout time.Duration, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{source: source, sink: sink, timeout: timeout, backoff: 3 * time.Second, logger: logger}
}

// Run polls until ctx is done. An update the sink refuses is retried on the
// next round.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("telegram polling failed", "offset", offset, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}

		refused := false
		for _, u := range updates {
			if err := p.sink.Enqueue(u); err != nil {
				p.logger.Warn("update queue full, retrying", "update_id", u.UpdateID, "error", err)
				refused = true
				break
			}
			offset = u.UpdateID + 1
		}
		if refused {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
		}
	}
}

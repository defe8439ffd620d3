package ctlog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/andres10976/certwatch/internal/model"
	"github.com/andres10976/certwatch/internal/service/feed"
)

const (
	DefaultBatchSize    = 256
	DefaultPollInterval = 10 * time.Second
)

// Source polls a single CT log and presents its new entries as a feed.
type Source struct {
	baseURL   string
	batchSize int64
	interval  time.Duration
	logger    *slog.Logger
}

func NewSource(baseURL string, batchSize int, interval time.Duration, logger *slog.Logger) *Source {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		baseURL:   baseURL,
		batchSize: int64(batchSize),
		interval:  interval,
		logger:    logger.With("component", "ctlog"),
	}
}

// Dial reads the current tree head and positions the stream one batch
// behind it.
func (s *Source) Dial(ctx context.Context) (feed.Stream, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("%w: no ct log url configured", feed.ErrTransportUnavailable)
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ct log url: %v", feed.ErrTransportUnavailable, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported ct log url scheme %q", feed.ErrTransportUnavailable, u.Scheme)
	}

	client := NewClient(s.baseURL)
	sth, err := client.GetSTH(ctx)
	if err != nil {
		return nil, err
	}

	next := max(sth.TreeSize-s.batchSize, 0)
	s.logger.Info("ct log connected", "url", s.baseURL, "tree_size", sth.TreeSize, "start_index", next)

	return &pollStream{
		client:    client,
		batchSize: s.batchSize,
		interval:  s.interval,
		next:      next,
		logger:    s.logger,
	}, nil
}

type pollStream struct {
	client    *Client
	batchSize int64
	interval  time.Duration
	logger    *slog.Logger

	next    int64
	pending []RawEntry
}

func (p *pollStream) Next(ctx context.Context) (model.CertificateEvent, error) {
	for len(p.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return model.CertificateEvent{}, err
		}
		if err := p.fill(ctx); err != nil {
			return model.CertificateEvent{}, err
		}
	}

	entry := p.pending[0]
	p.pending = p.pending[1:]
	index := p.next
	p.next++

	pc, err := ParseLeafInput(entry.LeafInput, entry.ExtraData)
	if err != nil {
		return model.CertificateEvent{}, fmt.Errorf("%w: entry %d: %v", feed.ErrMalformedEvent, index, err)
	}

	return model.CertificateEvent{
		MessageType:      model.MessageCertificateUpdate,
		CertIndex:        index,
		Domains:          pc.Domains(),
		SerialNumber:     pc.Serial,
		IssuerCommonName: pc.Issuer,
		SeenAt:           float64(pc.Timestamp.UnixMilli()) / 1000,
	}, nil
}

// fill buffers the next batch, sleeping one interval when the log has no
// entries past p.next.
func (p *pollStream) fill(ctx context.Context) error {
	sth, err := p.client.GetSTH(ctx)
	if err != nil {
		return err
	}

	if p.next >= sth.TreeSize {
		p.logger.Debug("caught up with ct log", "tree_size", sth.TreeSize)
		return p.wait(ctx)
	}

	end := min(p.next+p.batchSize-1, sth.TreeSize-1)
	entries, err := p.client.GetEntries(ctx, p.next, end)
	if err != nil {
		return err
	}
	p.logger.Debug("fetched ct log entries", "start", p.next, "end", end, "count", len(entries))
	if len(entries) == 0 {
		return p.wait(ctx)
	}
	p.pending = entries
	return nil
}

func (p *pollStream) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *pollStream) Close() error { return nil }

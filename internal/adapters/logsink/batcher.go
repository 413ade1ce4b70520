// Package logsink ships structured log lines to object storage in
// newline-delimited batches, one object per flush
package logsink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"contribot/internal/platform/config"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
)

// ObjectWriter stores one object under key
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Options configures a Batcher
type Options struct {
	Bucket      string
	Prefix      string
	RunID       string
	MaxLines    int
	// MaxBuffered caps the lines held while the bucket is unreachable;
	// the oldest go first
	MaxBuffered int
	FlushEvery  time.Duration
}

// OptionsFromConfig reads a LOGSINK_ scoped Conf
func OptionsFromConfig(c config.Conf) Options {
	return Options{
		Bucket:      c.MayString("BUCKET", ""),
		Prefix:      c.MayString("PREFIX", "contribot"),
		MaxLines:    c.MayInt("MAX_LINES", 500),
		MaxBuffered: c.MayInt("MAX_BUFFERED", 20000),
		FlushEvery:  c.MayDuration("FLUSH_EVERY", 10*time.Second),
	}
}

// Batcher buffers lines in memory. Write never touches the network;
// Flush and Run do
type Batcher struct {
	w    ObjectWriter
	opts Options

	mu      sync.Mutex
	buf     bytes.Buffer
	lines   int
	seq     int
	runID   string
	dropped int

	full chan struct{}
}

var _ logger.Sink = (*Batcher)(nil)

// NewBatcher builds a batcher over w
func NewBatcher(w ObjectWriter, o Options) *Batcher {
	if o.MaxLines <= 0 {
		o.MaxLines = 500
	}
	if o.MaxBuffered < o.MaxLines {
		o.MaxBuffered = 40 * o.MaxLines
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 10 * time.Second
	}
	return &Batcher{w: w, opts: o, runID: o.RunID, full: make(chan struct{}, 1)}
}

// SetRun switches the key namespace to a new run and restarts numbering
func (b *Batcher) SetRun(runID string) {
	b.mu.Lock()
	b.runID, b.seq = runID, 0
	b.mu.Unlock()
}

// Write buffers one encoded line
func (b *Batcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.buf.Write(p)
	if len(p) == 0 || p[len(p)-1] != '\n' {
		b.buf.WriteByte('\n')
	}
	b.lines++
	b.trim()
	full := b.lines >= b.opts.MaxLines
	b.mu.Unlock()

	if full {
		select {
		case b.full <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Flush writes the buffered lines as one object. On failure the lines stay
// buffered for the next attempt, up to MaxBuffered
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.lines == 0 {
		b.mu.Unlock()
		return nil
	}
	data := bytes.Clone(b.buf.Bytes())
	lines := b.lines
	b.seq++
	key := b.key(b.seq)
	b.buf.Reset()
	b.lines = 0
	b.mu.Unlock()

	if err := b.w.Put(ctx, key, data); err != nil {
		b.mu.Lock()
		rest := bytes.Clone(b.buf.Bytes())
		b.buf.Reset()
		b.buf.Write(data)
		b.buf.Write(rest)
		b.lines += lines
		b.trim()
		b.mu.Unlock()
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "logsink: put %s", key)
	}
	return nil
}

// Dropped reports how many lines were discarded to stay under MaxBuffered
func (b *Batcher) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// trim discards the oldest lines past MaxBuffered; callers hold mu
func (b *Batcher) trim() {
	over := b.lines - b.opts.MaxBuffered
	if over <= 0 {
		return
	}
	data := b.buf.Bytes()
	for range over {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			data = nil
			break
		}
		data = data[i+1:]
	}
	rest := bytes.Clone(data)
	b.buf.Reset()
	b.buf.Write(rest)
	b.lines -= over
	b.dropped += over
}

// Run flushes on a timer or when the buffer fills, and once more on exit
func (b *Batcher) Run(ctx context.Context) {
	t := time.NewTicker(b.opts.FlushEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			// ctx is gone; give the final flush its own short deadline
			fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = b.Flush(fctx)
			cancel()
			return
		case <-t.C:
		case <-b.full:
		}
		_ = b.Flush(ctx)
	}
}

// key is <prefix>/runs/<runID>/<seq>.ndjson; callers hold mu
func (b *Batcher) key(seq int) string {
	run := b.runID
	if run == "" {
		run = "adhoc"
	}
	return path.Join(b.opts.Prefix, "runs", run, fmt.Sprintf("%06d.ndjson", seq))
}

package logsink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"contribot/internal/platform/logger"
	kit "contribot/internal/platform/testkit"
)

type memWriter struct {
	mu   sync.Mutex
	objs map[string]string
	keys []string
	fail bool
}

func (m *memWriter) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("bucket unavailable")
	}
	if m.objs == nil {
		m.objs = map[string]string{}
	}
	m.objs[key] = string(data)
	m.keys = append(m.keys, key)
	return nil
}

func TestFlushWritesOneObjectPerBatch(t *testing.T) {
	t.Parallel()
	w := &memWriter{}
	b := NewBatcher(w, Options{Prefix: "logs", RunID: "run-1"})

	log := logger.New(logger.Options{Level: "info", Writer: &strings.Builder{}}, b)
	log.Info().Str("repo", "foo/bar").Msg("reconciled")
	log.Info().Msg("second")

	kit.NoErr(t, b.Flush(context.Background()))
	kit.NoErr(t, b.Flush(context.Background()))

	kit.MustEqual(t, len(w.keys), 1, "objects")
	kit.MustEqual(t, w.keys[0], "logs/runs/run-1/000001.ndjson", "key")
	body := w.objs[w.keys[0]]
	kit.MustEqual(t, strings.Count(body, "\n"), 2, "lines")
	kit.MustContain(t, body, `"repo":"foo/bar"`)
}

func TestFailedFlushKeepsLines(t *testing.T) {
	t.Parallel()
	w := &memWriter{fail: true}
	b := NewBatcher(w, Options{})
	_, _ = b.Write([]byte(`{"a":1}`))

	if err := b.Flush(context.Background()); err == nil {
		t.Fatal("want put error")
	}
	_, _ = b.Write([]byte(`{"b":2}` + "\n"))
	w.fail = false
	kit.NoErr(t, b.Flush(context.Background()))

	body := w.objs[w.keys[0]]
	kit.MustEqual(t, body, "{\"a\":1}\n{\"b\":2}\n", "retained order")
	kit.MustContain(t, w.keys[0], "runs/adhoc/")
}

func TestBufferDropsOldestPastCap(t *testing.T) {
	t.Parallel()
	w := &memWriter{fail: true}
	b := NewBatcher(w, Options{MaxLines: 2, MaxBuffered: 3})
	for _, l := range []string{"a", "b", "c"} {
		_, _ = b.Write([]byte(`{"l":"` + l + `"}` + "\n"))
	}
	for range 3 {
		if err := b.Flush(context.Background()); err == nil {
			t.Fatal("want put error")
		}
	}
	for _, l := range []string{"d", "e"} {
		_, _ = b.Write([]byte(`{"l":"` + l + `"}` + "\n"))
	}
	kit.MustEqual(t, b.Dropped(), 2, "dropped")

	w.fail = false
	kit.NoErr(t, b.Flush(context.Background()))
	body := w.objs[w.keys[0]]
	kit.MustEqual(t, body, "{\"l\":\"c\"}\n{\"l\":\"d\"}\n{\"l\":\"e\"}\n", "newest kept")
}

func TestSetRunRestartsNumbering(t *testing.T) {
	t.Parallel()
	w := &memWriter{}
	b := NewBatcher(w, Options{RunID: "a"})
	_, _ = b.Write([]byte("x\n"))
	kit.NoErr(t, b.Flush(context.Background()))
	b.SetRun("b")
	_, _ = b.Write([]byte("y\n"))
	kit.NoErr(t, b.Flush(context.Background()))
	kit.MustEqual(t, w.keys[1], "runs/b/000001.ndjson", "second run key")
}

func TestRunFlushesWhenFullAndOnExit(t *testing.T) {
	t.Parallel()
	w := &memWriter{}
	b := NewBatcher(w, Options{MaxLines: 2, FlushEvery: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { b.Run(ctx); close(done) }()

	_, _ = b.Write([]byte("1\n"))
	_, _ = b.Write([]byte("2\n"))
	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		n := len(w.keys)
		w.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("full buffer was not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, _ = b.Write([]byte("3\n"))
	cancel()
	<-done
	kit.MustEqual(t, len(w.keys), 2, "final flush on exit")
}

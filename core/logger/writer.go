package logger

import (
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

type entry struct {
	line []byte
	ack  chan error
}

// asyncWriter copies log lines to its sinks from a single goroutine.
// Flush requests travel through the same queue, so a flush acknowledges
// every line written before it.
type asyncWriter struct {
	out   io.Writer
	queue chan entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(sinks []io.Writer, depth int) *asyncWriter {
	if depth <= 0 {
		depth = 256
	}
	live := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		out:   io.MultiWriter(live...),
		queue: make(chan entry, depth),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			e.ack <- w.Err()
			continue
		}
		if _, err := w.out.Write(e.line); err != nil {
			w.setErr(err)
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.send(entry{line: append([]byte(nil), p...)})
}

// Flush waits until every line queued before it reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	if err := w.send(entry{ack: ack}); err != nil {
		return err
	}
	return <-ack
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.Err()
}

func (w *asyncWriter) send(e entry) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- e
	return nil
}

// Err returns the first write error seen by the writer.
func (w *asyncWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

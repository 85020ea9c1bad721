package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 20 * time.Millisecond

// PayloadBuffer is the append-only newline-delimited JSON file holding
// payloads that have not been uploaded yet.
type PayloadBuffer struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

// OpenPayloadBuffer returns a buffer backed by path.
func OpenPayloadBuffer(path string) (*PayloadBuffer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create buffer directory: %w", err)
	}
	return &PayloadBuffer{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the backing file path.
func (b *PayloadBuffer) Path() string {
	return b.path
}

// Append writes payload as one JSON line.
func (b *PayloadBuffer) Append(payload any) error {
	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	line = append(line, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lock.Lock(); err != nil {
		return fmt.Errorf("lock buffer: %w", err)
	}
	defer b.lock.Unlock() //nolint:errcheck

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open buffer: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append payload: %w", err)
	}
	return f.Close()
}

// Len returns the number of buffered lines.
func (b *PayloadBuffer) Len() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines, err := b.readLines()
	return len(lines), err
}

// Size returns the buffer file size in bytes.
func (b *PayloadBuffer) Size() int64 {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Drain hands every buffered payload to send and empties the buffer when
// send succeeds. The file lock is held from the read until the file is
// removed, so appends and other drains in any process wait for it. On error
// the buffer is left as it was. Lines that are not valid JSON are dropped
// with the rest. It returns the number of payloads sent.
func (b *PayloadBuffer) Drain(ctx context.Context, send func(context.Context, []json.RawMessage) error) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("lock buffer: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("lock buffer: %w", ctx.Err())
	}
	defer b.lock.Unlock() //nolint:errcheck

	lines, err := b.readLines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	payloads := make([]json.RawMessage, 0, len(lines))
	for _, l := range lines {
		if json.Valid(l) {
			payloads = append(payloads, json.RawMessage(l))
		}
	}
	if len(payloads) > 0 {
		if err := send(ctx, payloads); err != nil {
			return 0, err
		}
	}

	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return len(payloads), fmt.Errorf("remove buffer: %w", err)
	}
	return len(payloads), nil
}

// readLines returns the non-blank lines of the buffer file.
func (b *PayloadBuffer) readLines() ([][]byte, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open buffer: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan buffer: %w", err)
	}
	return lines, nil
}

// Package telemetry reads the game client's logs and turns them into pipeline
// input: JSON-lines game events for the trackers and Decks.log entries for the
// deck holder.
package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultPollInterval is how often a followed file is checked for new data.
const DefaultPollInterval = 100 * time.Millisecond

// TailOptions control how a log file is read.
type TailOptions struct {
	// FromStart reads the existing content before following.
	FromStart bool
	// Follow keeps reading appended lines until the context is done.
	Follow       bool
	PollInterval time.Duration
}

// Tail calls handle for every complete line of the file. Without Follow it
// returns at end of file; a trailing line without newline is still handled.
func Tail(ctx context.Context, path string, opts TailOptions, handle func(line string)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if !opts.FromStart {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek %s: %w", path, err)
		}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	reader := bufio.NewReader(file)
	var partial strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if err == nil {
			handle(strings.TrimRight(partial.String(), "\r\n"))
			partial.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !opts.Follow {
			if partial.Len() > 0 {
				handle(strings.TrimRight(partial.String(), "\r\n"))
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll):
		}
	}
}

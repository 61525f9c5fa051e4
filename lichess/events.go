package lichess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// StreamEvents opens the account event stream and invokes handle for each
// decoded event until ctx is canceled or the connection breaks. Blank
// keep-alive lines are skipped, malformed lines are logged and skipped.
//
// Returns nil when ctx ended the stream, an error otherwise; the caller is
// expected to reconnect.
func (c *Client) StreamEvents(ctx context.Context, handle func(Event)) error {
	rc, err := c.openNDJSON(ctx, c.stream, "/api/stream/event")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && ctx.Err() == nil {
			slog.Warn("failed to close event stream", slog.Any("error", cerr))
		}
	}()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("skipping malformed stream event", slog.Any("error", err))
			continue
		}
		handle(ev)
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	return fmt.Errorf("event stream closed by server")
}

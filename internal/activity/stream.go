package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
)

const (
	heartbeatInterval = 60 * time.Second
	pollTick          = 2 * time.Second
	minPollGap        = 3 * time.Second
	pollBatchSize     = 10
)

// Store is the narrow slice of the relational store the Activity Stream
// needs: the project-scoped, monotonic-id message feed.
type Store interface {
	MessagesSince(ctx context.Context, projectID string, lastMessageID int64, limit int) ([]domain.Message, error)
}

// Service drives one Activity Stream connection per ServeStream call.
type Service struct {
	store Store
}

// NewService builds an activity Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ServeStream writes SSE frames to w for (project_id, session_id), starting
// from lastMessageID, until the request context is cancelled or a write
// fails. It never returns on a transient poll error: those are logged and
// the loop continues, per spec's "must not close the connection on
// transient errors".
func (s *Service) ServeStream(w http.ResponseWriter, r *http.Request, projectID, sessionID string, lastMessageID int64) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("activity: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeFrame(w, flusher, Frame{Type: EventHeartbeat, Timestamp: nowMillis()}); err != nil {
		return err
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(pollTick)
	defer poll.Stop()

	var lastPollAt time.Time
	cursor := lastMessageID

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := writeFrame(w, flusher, Frame{Type: EventHeartbeat, Timestamp: nowMillis()}); err != nil {
				return err
			}
		case <-poll.C:
			if time.Since(lastPollAt) < minPollGap {
				continue
			}
			lastPollAt = time.Now()
			next, err := s.pollOnce(ctx, w, flusher, projectID, cursor)
			if err != nil {
				if isWriteError(err) {
					return err
				}
				log.Printf("activity: poll error for project=%s session=%s: %v", projectID, sessionID, err)
				continue
			}
			cursor = next
		}
	}
}

type writeError struct{ cause error }

func (e writeError) Error() string { return e.cause.Error() }
func isWriteError(err error) bool  { _, ok := err.(writeError); return ok }

// pollOnce fetches up to pollBatchSize new messages (newest first), emits
// the aggregated TokenUpdate ahead of the batch, then each NewMessage (and
// any FileUpdated it carries) in chronological order, and returns the new
// cursor (the highest id observed, or the prior cursor if nothing arrived).
func (s *Service) pollOnce(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, projectID string, cursor int64) (int64, error) {
	batch, err := s.store.MessagesSince(ctx, projectID, cursor, pollBatchSize)
	if err != nil {
		return cursor, err
	}
	if len(batch) == 0 {
		return cursor, nil
	}

	newest := batch[0]
	var tokensSent, tokensReceived int
	for _, m := range batch {
		if m.TokensInput != nil {
			tokensSent += *m.TokensInput
		}
		if m.TokensOutput != nil {
			tokensReceived += *m.TokensOutput
		}
	}
	contextSize := 0
	if newest.ContextTokens != nil {
		contextSize = *newest.ContextTokens
	}

	if err := writeFrame(w, flusher, Frame{
		Type:      EventTokenUpdate,
		Timestamp: nowMillis(),
		Tokens:    &TokenUpdatePayload{TokensSent: tokensSent, TokensReceived: tokensReceived, ContextSize: contextSize},
	}); err != nil {
		return cursor, writeError{err}
	}

	for i := len(batch) - 1; i >= 0; i-- {
		m := batch[i]
		if err := writeFrame(w, flusher, Frame{
			Type:      EventNewMessage,
			Timestamp: nowMillis(),
			Message: &NewMessagePayload{
				ID: m.ID, Content: m.Content, Role: string(m.Role),
				TokensInput: m.TokensInput, TokensOutput: m.TokensOutput, ContextTokens: m.ContextTokens,
			},
		}); err != nil {
			return cursor, writeError{err}
		}

		if op, found := parseFileOperation(string(m.Role), m.Content); found {
			if err := writeFrame(w, flusher, Frame{
				Type: EventFileUpdated, Timestamp: nowMillis(),
				File: &FileUpdatedPayload{Operation: op},
			}); err != nil {
				return cursor, writeError{err}
			}
		}
	}

	return newest.ID, nil
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return writeError{err}
	}
	if _, err := w.Write(payload); err != nil {
		return writeError{err}
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return writeError{err}
	}
	flusher.Flush()
	return nil
}

package store

import (
	"context"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
)

// CreateMessage inserts a message, assigning it the next id in its
// project's monotonic sequence.
func (s *Store) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, project_id, session_id, role, content, tokens_input, tokens_output, context_tokens, created_at)
		SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5, $6, $7, $8
		FROM messages WHERE project_id = $1
		RETURNING id`,
		msg.ProjectID, msg.SessionID, msg.Role, msg.Content, msg.TokensInput, msg.TokensOutput,
		msg.ContextTokens, msg.Timestamp)

	if err := row.Scan(&msg.ID); err != nil {
		return domain.Message{}, apperr.Wrap(apperr.Internal, err, "insert message")
	}
	return msg, nil
}

// MessagesSince returns up to limit messages for projectID with id strictly
// greater than lastMessageID, newest first — the shape the activity stream's
// poll loop needs: id is monotonic per project (not per session), so the
// poll is project-scoped, matching every other session's activity into the
// same stream.
func (s *Store) MessagesSince(ctx context.Context, projectID string, lastMessageID int64, limit int) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, session_id, role, content, tokens_input, tokens_output, context_tokens, created_at
		FROM messages
		WHERE project_id = $1 AND id > $2
		ORDER BY id DESC
		LIMIT $3`, projectID, lastMessageID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "query messages since")
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.SessionID, &m.Role, &m.Content,
			&m.TokensInput, &m.TokensOutput, &m.ContextTokens, &m.Timestamp); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan message")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
)

// GetChatSession looks up a session by its (project_id, session_id) pair,
// the pair callers actually address sessions by.
func (s *Store) GetChatSession(ctx context.Context, projectID, sessionID string) (domain.ChatSession, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, session_id, branch_name, status, title, description,
		       message_count, last_activity_at, is_default, merged, merged_at, pr_number, pr_url
		FROM chat_sessions WHERE project_id = $1 AND session_id = $2`, projectID, sessionID)

	cs, err := scanChatSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatSession{}, false, nil
	}
	if err != nil {
		return domain.ChatSession{}, false, apperr.Wrap(apperr.Internal, err, "query chat session")
	}
	return cs, true, nil
}

// CreateChatSession inserts a new session record, minting an id if the
// caller didn't set one.
func (s *Store) CreateChatSession(ctx context.Context, cs domain.ChatSession) error {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_sessions
			(id, project_id, user_id, session_id, branch_name, status, title, description,
			 message_count, last_activity_at, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cs.ID, cs.ProjectID, cs.UserID, cs.SessionID, cs.BranchName, cs.Status, cs.Title,
		cs.Description, cs.MessageCount, cs.LastActivityAt, cs.IsDefault)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "insert chat session")
	}
	return nil
}

// ListChatSessions returns every session for a project in no particular
// order; callers that need last_activity_at ordering (list_sessions) sort
// after any merge-state refresh so the sort reflects up-to-date data.
func (s *Store) ListChatSessions(ctx context.Context, projectID string) ([]domain.ChatSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, user_id, session_id, branch_name, status, title, description,
		       message_count, last_activity_at, is_default, merged, merged_at, pr_number, pr_url
		FROM chat_sessions WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "query chat sessions")
	}
	defer rows.Close()

	var out []domain.ChatSession
	for rows.Next() {
		cs, err := scanChatSession(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan chat session")
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// UpdateChatSession persists the mutable fields of an existing session:
// activity timestamp, message count, status, and merge state.
func (s *Store) UpdateChatSession(ctx context.Context, cs domain.ChatSession) error {
	var merged bool
	var mergedAt any
	var prNumber, prURL any
	if cs.MergeInfo != nil {
		merged = cs.MergeInfo.Merged
		mergedAt = cs.MergeInfo.MergedAt
		prNumber = cs.MergeInfo.PRNumber
		prURL = cs.MergeInfo.PRURL
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_sessions SET
			status = $3, message_count = $4, last_activity_at = $5, is_default = $6,
			merged = $7, merged_at = $8, pr_number = $9, pr_url = $10
		WHERE project_id = $1 AND session_id = $2`,
		cs.ProjectID, cs.SessionID, cs.Status, cs.MessageCount, cs.LastActivityAt, cs.IsDefault,
		merged, mergedAt, prNumber, prURL)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "update chat session")
	}
	return nil
}

// row is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query), letting
// scanChatSession serve both GetChatSession and ListChatSessions.
type row interface {
	Scan(dest ...any) error
}

func scanChatSession(r row) (domain.ChatSession, error) {
	var cs domain.ChatSession
	var merged bool
	var mergedAt *time.Time
	var prNumber *int
	var prURL *string

	err := r.Scan(&cs.ID, &cs.ProjectID, &cs.UserID, &cs.SessionID, &cs.BranchName, &cs.Status,
		&cs.Title, &cs.Description, &cs.MessageCount, &cs.LastActivityAt, &cs.IsDefault,
		&merged, &mergedAt, &prNumber, &prURL)
	if err != nil {
		return domain.ChatSession{}, err
	}
	if merged {
		info := &domain.MergeInfo{Merged: true}
		if mergedAt != nil {
			info.MergedAt = *mergedAt
		}
		if prNumber != nil {
			info.PRNumber = *prNumber
		}
		if prURL != nil {
			info.PRURL = *prURL
		}
		cs.MergeInfo = info
	}
	return cs, nil
}

package tokengate

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MrEthical07/tokengate/session"
)

// SessionInfo is the safe view of a refresh session. Ref identifies the
// session without exposing the handle.
type SessionInfo struct {
	Ref         string    `json:"ref"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DeviceBound bool      `json:"deviceBound"`
}

// SessionRef returns the reference [SessionInfo] uses for handle.
func SessionRef(handle string) string {
	return sessionRef(handle)
}

// ActiveSessionCount returns how many live sessions userID has.
//
//	Performance: 1 SMEMBERS + 1 pipelined EXISTS batch.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrUserNotFound
	}

	handles, err := e.sessionStore.ActiveHandles(ctx, userID)
	if err != nil {
		return 0, errors.Join(ErrBackendUnavailable, err)
	}
	return len(handles), nil
}

// ListActiveSessions returns the live sessions of userID, newest first.
// Sessions that expire between the index read and the lookup are skipped.
//
//	Performance: 1 SMEMBERS + 1 pipelined EXISTS batch + 1 script per session.
func (e *Engine) ListActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	handles, err := e.sessionStore.ActiveHandles(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(handles))
	for _, handle := range handles {
		// A nil fingerprint input never triggers the mismatch delete.
		sess, err := e.sessionStore.Validate(ctx, handle, nil)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				continue
			}
			return nil, errors.Join(ErrBackendUnavailable, err)
		}
		out = append(out, toSessionInfo(sess))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func toSessionInfo(sess *session.Session) SessionInfo {
	return SessionInfo{
		Ref:         sessionRef(sess.Handle),
		IssuedAt:    sess.IssuedAtTime(),
		ExpiresAt:   time.Unix(sess.ExpiresAt, 0),
		DeviceBound: sess.DeviceBound,
	}
}

// Package session holds durable per-identity conversational state. The
// store exposes the two-key primitives the dialogue bridge needs so that
// pairing and teardown are never two independent writes.
package session

import (
	"context"

	"github.com/spec-kit/support-bot/internal/domain"
)

// Store is durable keyed storage for sessions. Get returns (nil, nil)
// when no session exists for the identity.
type Store interface {
	Get(ctx context.Context, chatID int64) (*domain.Session, error)
	Put(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context, chatID int64) error

	// PutGuarded writes the session only while the stored session still
	// belongs to the given flow (or none exists). A form step loaded
	// before a concurrent dialogue pairing therefore cannot clobber the
	// link on write-back. Reports whether the write was applied.
	PutGuarded(ctx context.Context, session *domain.Session, guard domain.Flow) (bool, error)

	// Pair writes both sessions in one atomic step. A concurrent teardown
	// can never observe one side linked and the other not.
	Pair(ctx context.Context, a, b *domain.Session) error

	// BreakPair clears the closer's session unconditionally and the
	// counterpart's only if it still holds a link to the same request,
	// both decided and applied atomically. Reports whether the
	// counterpart side was cleared.
	BreakPair(ctx context.Context, closerID, counterpartID, requestID int64) (bool, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// requireAdmin loads the actor and checks it holds unexpired admin rights on
// an ACTIVE account. Unknown actors are forbidden, not "not found".
func requireAdmin(ctx context.Context, users store.UserStore, actorID string, now time.Time) (types.User, error) {
	actor, err := users.GetUser(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrForbidden
	}
	if err != nil {
		return types.User{}, fmt.Errorf("load actor %s: %w", actorID, err)
	}
	if actor.Status != types.StatusActive || !actor.HasAdminAccess(now) {
		return types.User{}, ErrForbidden
	}
	return actor, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

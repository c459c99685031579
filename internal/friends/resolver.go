package friends

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/vidfriends/friends/internal/models"
	"github.com/vidfriends/friends/internal/repositories"
)

// AccountDirectory looks up accounts by identifier or unique name.
type AccountDirectory interface {
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByName(ctx context.Context, username string) (models.Account, error)
}

// Resolver turns a friend-target reference into an account identifier.
type Resolver struct {
	Accounts AccountDirectory
}

// Resolve looks the target up by id when one is given and by name otherwise.
func (r Resolver) Resolve(ctx context.Context, targetID, targetName string) (string, error) {
	const op = "resolve account"

	if r.Accounts == nil {
		return "", internal(op, errors.New("account directory unavailable"))
	}

	targetID = strings.TrimSpace(targetID)
	targetName = strings.TrimSpace(targetName)

	var (
		account models.Account
		err     error
	)
	switch {
	case targetID != "":
		if _, parseErr := uuid.Parse(targetID); parseErr != nil {
			return "", fail(op, ErrNotFound)
		}
		account, err = r.Accounts.FindByID(ctx, targetID)
	case targetName != "":
		account, err = r.Accounts.FindByName(ctx, targetName)
	default:
		return "", fail(op, ErrNotFound)
	}

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", fail(op, ErrNotFound)
		}
		return "", internal(op, err)
	}

	return account.ID, nil
}

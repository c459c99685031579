package repositories

import (
	"context"

	"github.com/vidfriends/friends/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByName(ctx context.Context, username string) (models.Account, error)
}

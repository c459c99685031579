package friends

import (
	"context"
	"errors"

	"github.com/vidfriends/friends/internal/logging"
	"github.com/vidfriends/friends/internal/models"
	"github.com/vidfriends/friends/internal/repositories"
)

// RelationshipLister is the read side of the relationship store.
type RelationshipLister interface {
	ListForAccount(ctx context.Context, accountID string) ([]models.Relationship, error)
}

// ProfileLookup resolves the public profile of an account.
type ProfileLookup interface {
	PublicProfile(ctx context.Context, accountID string) (models.Profile, error)
}

// Query builds the classified friend view for an account.
type Query struct {
	Relationships RelationshipLister
	Profiles      ProfileLookup
}

// ListRelationships returns the acting account's accepted friends and pending
// requests. Accepted friendships appear once per counterpart even though they
// are stored as two records. Pending requests are also split by direction.
func (q Query) ListRelationships(ctx context.Context, acting string) (models.FriendList, error) {
	const op = "list relationships"

	ctx, span := logging.StartSpan(ctx, "friends.list_relationships")
	defer span.End()

	list := models.FriendList{
		Accepted: []models.FriendEntry{},
		Pending:  []models.FriendEntry{},
		Incoming: []models.FriendEntry{},
		Outgoing: []models.FriendEntry{},
	}

	if q.Relationships == nil {
		return list, internal(op, errors.New("relationship store unavailable"))
	}

	records, err := q.Relationships.ListForAccount(ctx, acting)
	if err != nil {
		return list, internal(op, err)
	}

	friendAt := make(map[string]int)
	var friendRecords []models.Relationship
	profiles := make(map[string]models.Profile)

	for _, rel := range records {
		counterpart := rel.Counterpart(acting)

		switch rel.Status {
		case models.StatusAccepted:
			i, seen := friendAt[counterpart]
			if !seen {
				friendAt[counterpart] = len(friendRecords)
				friendRecords = append(friendRecords, rel)
				continue
			}
			if originalRequest(rel, friendRecords[i]) {
				friendRecords[i] = rel
			}
		case models.StatusPending:
			entry := q.entry(ctx, acting, rel, profiles)
			list.Pending = append(list.Pending, entry)
			if entry.Incoming {
				list.Incoming = append(list.Incoming, entry)
			} else {
				list.Outgoing = append(list.Outgoing, entry)
			}
		}
	}

	for _, rel := range friendRecords {
		list.Accepted = append(list.Accepted, q.entry(ctx, acting, rel, profiles))
	}

	return list, nil
}

// originalRequest reports whether a precedes b as the record a friendship grew
// from. Both parties resolve the pair to the same record.
func originalRequest(a, b models.Relationship) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (q Query) entry(ctx context.Context, acting string, rel models.Relationship, cache map[string]models.Profile) models.FriendEntry {
	counterpart := rel.Counterpart(acting)
	return models.FriendEntry{
		RequestID:   rel.ID,
		Status:      rel.Status,
		Incoming:    rel.To == acting,
		Friend:      q.profile(ctx, counterpart, cache),
		CreatedAt:   rel.CreatedAt,
		RespondedAt: rel.RespondedAt,
	}
}

// profile never fails; a lookup error degrades to the bare account id.
func (q Query) profile(ctx context.Context, accountID string, cache map[string]models.Profile) models.Profile {
	if profile, ok := cache[accountID]; ok {
		return profile
	}

	bare := models.Profile{AccountID: accountID}
	if q.Profiles == nil {
		return bare
	}

	profile, err := q.Profiles.PublicProfile(ctx, accountID)
	if err != nil {
		logger := logging.FromContext(ctx)
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("profile missing for relationship counterpart", "counterpart", accountID)
		} else {
			logger.Error("profile lookup failed", "counterpart", accountID, "error", err)
		}
		return bare
	}

	profile.AccountID = accountID
	cache[accountID] = profile
	return profile
}

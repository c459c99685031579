package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vidfriends/friends/internal/logging"
	"github.com/vidfriends/friends/internal/models"
)

// ErrExportsDisabled indicates no object storage is configured for exports.
var ErrExportsDisabled = errors.New("friend list exports are disabled")

// FriendLister builds the friend view that gets exported.
type FriendLister interface {
	ListRelationships(ctx context.Context, acting string) (models.FriendList, error)
}

// ObjectStorage persists an exported document and returns its location.
type ObjectStorage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// Snapshot is the exported document.
type Snapshot struct {
	AccountID   string            `json:"accountId"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Friends     models.FriendList `json:"friends"`
}

// Exporter writes an account's friend view to object storage.
type Exporter struct {
	Friends FriendLister
	Storage ObjectStorage
	NowFunc func() time.Time
}

// Export uploads a snapshot of the acting account's friend view.
func (e Exporter) Export(ctx context.Context, acting string) (string, error) {
	if e.Storage == nil {
		return "", ErrExportsDisabled
	}
	if e.Friends == nil {
		return "", errors.New("friend lister unavailable")
	}

	list, err := e.Friends.ListRelationships(ctx, acting)
	if err != nil {
		return "", fmt.Errorf("build friend list: %w", err)
	}

	now := e.now()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Snapshot{AccountID: acting, GeneratedAt: now, Friends: list}); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("exports/%s/%s.json", acting, now.Format("20060102T150405Z"))
	location, err := e.Storage.Save(ctx, name, "application/json", &buf)
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).Info("friend list exported", "location", location, "accepted", len(list.Accepted), "pending", len(list.Pending))
	return location, nil
}

func (e Exporter) now() time.Time {
	if e.NowFunc != nil {
		return e.NowFunc()
	}
	return time.Now().UTC()
}

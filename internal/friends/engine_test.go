package friends

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vidfriends/friends/internal/models"
	"github.com/vidfriends/friends/internal/repositories"
)

const (
	alice = "00000000-0000-0000-0000-00000000000a"
	bob   = "00000000-0000-0000-0000-00000000000b"
	carol = "00000000-0000-0000-0000-00000000000c"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

// failingStore fails every call so the engine's error mapping can be observed.
type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) CreatePending(context.Context, models.Relationship) error {
	s.calls++
	return s.err
}

func (s *failingStore) Find(context.Context, string) (models.Relationship, error) {
	s.calls++
	return models.Relationship{}, s.err
}

func (s *failingStore) Accept(context.Context, string, string, string, time.Time) (models.Relationship, bool, error) {
	s.calls++
	return models.Relationship{}, false, s.err
}

func (s *failingStore) DeletePending(context.Context, string, string, bool) (models.Relationship, error) {
	s.calls++
	return models.Relationship{}, s.err
}

func (s *failingStore) DeleteAccepted(context.Context, string, string) (int64, error) {
	s.calls++
	return 0, s.err
}

func (s *failingStore) ListForAccount(context.Context, string) ([]models.Relationship, error) {
	s.calls++
	return nil, s.err
}

func newTestEngine() (Engine, *repositories.InMemoryRelationshipStore, *recordingPublisher) {
	store := repositories.NewInMemoryRelationshipStore()
	events := &recordingPublisher{}
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	return Engine{Store: store, Events: events, NowFunc: func() time.Time { return now }}, store, events
}

// storedRecords counts the distinct records touching any of the test accounts.
func storedRecords(t *testing.T, store repositories.RelationshipStore) int {
	t.Helper()
	ids := make(map[string]struct{})
	for _, account := range []string{alice, bob, carol} {
		records, err := store.ListForAccount(context.Background(), account)
		if err != nil {
			t.Fatalf("list records for %s: %v", account, err)
		}
		for _, rel := range records {
			ids[rel.ID] = struct{}{}
		}
	}
	return len(ids)
}

func mustSend(t *testing.T, engine Engine, from, to string) string {
	t.Helper()
	id, err := engine.SendRequest(context.Background(), from, to)
	if err != nil {
		t.Fatalf("send request %s -> %s: %v", from, to, err)
	}
	return id
}

func mustAccept(t *testing.T, engine Engine, acting, id string) {
	t.Helper()
	if err := engine.AcceptRequest(context.Background(), acting, id); err != nil {
		t.Fatalf("accept %s as %s: %v", id, acting, err)
	}
}

func expectEvents(t *testing.T, events *recordingPublisher, want ...models.EventType) {
	t.Helper()
	if got := events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestEngineSendRequest(t *testing.T) {
	engine, store, events := newTestEngine()
	ctx := context.Background()

	id := mustSend(t, engine, alice, bob)
	if id == "" {
		t.Fatal("expected a request id")
	}

	rel, err := store.Find(ctx, id)
	if err != nil {
		t.Fatalf("find request: %v", err)
	}
	if rel.From != alice || rel.To != bob || rel.Status != models.StatusPending {
		t.Fatalf("unexpected request %+v", rel)
	}
	expectEvents(t, events, models.EventRequestSent)

	if _, err := engine.SendRequest(ctx, alice, bob); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate request to conflict, got %v", err)
	}
	if _, err := engine.SendRequest(ctx, bob, alice); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected crossed request to conflict, got %v", err)
	}

	if n := storedRecords(t, store); n != 1 {
		t.Fatalf("expected one stored record, got %d", n)
	}
}

func TestEngineSendRequestValidation(t *testing.T) {
	engine, store, _ := newTestEngine()

	if _, err := engine.SendRequest(context.Background(), alice, alice); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected self request to be rejected, got %v", err)
	}
	if _, err := engine.SendRequest(context.Background(), alice, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected empty target to be rejected, got %v", err)
	}

	if n := storedRecords(t, store); n != 0 {
		t.Fatalf("expected no stored records, got %d", n)
	}
}

func TestEngineSendRequestToExistingFriend(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	mustAccept(t, engine, bob, mustSend(t, engine, alice, bob))

	if _, err := engine.SendRequest(ctx, alice, bob); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected request to a friend to conflict, got %v", err)
	}
	if _, err := engine.SendRequest(ctx, bob, alice); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected reverse request to a friend to conflict, got %v", err)
	}
}

func TestEngineSendRequestStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		want     error
	}{
		{"conflict", repositories.ErrConflict, ErrConflict},
		{"missingAccount", repositories.ErrNotFound, ErrNotFound},
		{"internal", errors.New("connection reset"), ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := Engine{Store: &failingStore{err: tc.storeErr}}
			if _, err := engine.SendRequest(context.Background(), alice, bob); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEngineAcceptRequest(t *testing.T) {
	engine, store, events := newTestEngine()
	ctx := context.Background()

	id := mustSend(t, engine, alice, bob)
	mustAccept(t, engine, bob, id)

	original, err := store.Find(ctx, id)
	if err != nil {
		t.Fatalf("find request: %v", err)
	}
	if original.Status != models.StatusAccepted || original.RespondedAt == nil {
		t.Fatalf("unexpected accepted request %+v", original)
	}

	records, err := store.ListForAccount(ctx, bob)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both directions, got %+v", records)
	}

	var reciprocal *models.Relationship
	for i := range records {
		if records[i].From == bob && records[i].To == alice {
			reciprocal = &records[i]
		}
	}
	if reciprocal == nil {
		t.Fatal("expected reciprocal bob->alice record")
	}
	if reciprocal.Status != models.StatusAccepted {
		t.Fatalf("expected accepted reciprocal, got %s", reciprocal.Status)
	}

	expectEvents(t, events, models.EventRequestSent, models.EventRequestAccepted)
}

func TestEngineAcceptRequestIsIdempotent(t *testing.T) {
	engine, store, _ := newTestEngine()

	id := mustSend(t, engine, alice, bob)
	mustAccept(t, engine, bob, id)
	mustAccept(t, engine, bob, fmt.Sprintf(` "%s" `, id))

	if n := storedRecords(t, store); n != 2 {
		t.Fatalf("re-accepting must not duplicate the reciprocal record, got %d records", n)
	}
}

func TestEngineAcceptRequestPublishesOnce(t *testing.T) {
	engine, store, events := newTestEngine()
	ctx := context.Background()

	id := mustSend(t, engine, alice, bob)
	mustAccept(t, engine, bob, id)
	mustAccept(t, engine, bob, id)

	records, err := store.ListForAccount(ctx, alice)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	var reciprocalID string
	for _, rel := range records {
		if rel.From == bob && rel.To == alice {
			reciprocalID = rel.ID
		}
	}
	if reciprocalID == "" {
		t.Fatal("expected reciprocal bob->alice record")
	}

	// The reciprocal is addressed to alice but was never a request.
	mustAccept(t, engine, alice, reciprocalID)

	expectEvents(t, events, models.EventRequestSent, models.EventRequestAccepted)
	if n := storedRecords(t, store); n != 2 {
		t.Fatalf("expected two records after replays, got %d", n)
	}
}

func TestEngineAcceptRequestOnlyByAddressee(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	id := mustSend(t, engine, alice, bob)

	for _, actor := range []string{alice, carol} {
		if err := engine.AcceptRequest(ctx, actor, id); !errors.Is(err, ErrNotFoundOrForbidden) {
			t.Fatalf("actor %s: expected ErrNotFoundOrForbidden, got %v", actor, err)
		}
	}
	if err := engine.AcceptRequest(ctx, bob, uuid.NewString()); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("expected unknown id to be rejected, got %v", err)
	}

	rel, err := store.Find(ctx, id)
	if err != nil {
		t.Fatalf("find request: %v", err)
	}
	if rel.Status != models.StatusPending {
		t.Fatalf("expected request to stay pending, got %s", rel.Status)
	}
	if n := storedRecords(t, store); n != 1 {
		t.Fatalf("expected one stored record, got %d", n)
	}
}

func TestEngineAcceptRequestInvalidID(t *testing.T) {
	store := &failingStore{err: errors.New("must not be called")}
	engine := Engine{Store: store}

	for _, raw := range []string{"", "not-a-uuid", "12345"} {
		if err := engine.AcceptRequest(context.Background(), bob, raw); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("request id %q: expected ErrInvalidArgument, got %v", raw, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("store must not be touched for malformed ids, got %d calls", store.calls)
	}
}

func TestEngineAcceptRequestStoreFailure(t *testing.T) {
	engine := Engine{Store: &failingStore{err: errors.New("tx aborted")}}

	err := engine.AcceptRequest(context.Background(), bob, uuid.NewString())
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if !strings.Contains(err.Error(), "tx aborted") {
		t.Fatalf("expected cause in error, got %v", err)
	}
}

func TestEngineDeclineAndCancel(t *testing.T) {
	engine, store, events := newTestEngine()
	ctx := context.Background()

	declined := mustSend(t, engine, alice, bob)
	if err := engine.DeclineRequest(ctx, alice, declined); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("sender cannot decline, got %v", err)
	}
	if err := engine.DeclineRequest(ctx, bob, declined); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if n := storedRecords(t, store); n != 0 {
		t.Fatalf("expected declined request to be removed, got %d records", n)
	}

	cancelled := mustSend(t, engine, alice, bob)
	if err := engine.CancelRequest(ctx, bob, cancelled); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("addressee cannot cancel, got %v", err)
	}
	if err := engine.CancelRequest(ctx, alice, cancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n := storedRecords(t, store); n != 0 {
		t.Fatalf("expected cancelled request to be removed, got %d records", n)
	}

	if err := engine.CancelRequest(ctx, alice, cancelled); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
	if err := engine.DeclineRequest(ctx, bob, "bogus"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected malformed id to be rejected, got %v", err)
	}

	expectEvents(t, events,
		models.EventRequestSent,
		models.EventRequestDeclined,
		models.EventRequestSent,
		models.EventRequestCancelled,
	)
}

func TestEngineDeclineAcceptedRequest(t *testing.T) {
	engine, _, _ := newTestEngine()

	id := mustSend(t, engine, alice, bob)
	mustAccept(t, engine, bob, id)

	if err := engine.DeclineRequest(context.Background(), bob, id); !errors.Is(err, ErrNotFoundOrForbidden) {
		t.Fatalf("expected accepted request to be out of reach, got %v", err)
	}
}

func TestEngineRemoveFriendship(t *testing.T) {
	engine, store, events := newTestEngine()
	ctx := context.Background()

	if err := engine.RemoveFriendship(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a friendship, got %v", err)
	}

	id := mustSend(t, engine, alice, bob)
	if err := engine.RemoveFriendship(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pending requests are not friendships, got %v", err)
	}

	mustAccept(t, engine, bob, id)
	if err := engine.RemoveFriendship(ctx, bob, alice); err != nil {
		t.Fatalf("remove friendship: %v", err)
	}
	if n := storedRecords(t, store); n != 0 {
		t.Fatalf("expected both directions removed, got %d records", n)
	}

	if err := engine.RemoveFriendship(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second removal to fail, got %v", err)
	}
	if err := engine.RemoveFriendship(ctx, alice, "bob"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected malformed friend id to be rejected, got %v", err)
	}

	types := events.types()
	if types[len(types)-1] != models.EventFriendshipRemoved {
		t.Fatalf("expected removal event last, got %v", types)
	}
}

func TestEnginePublishFailureDoesNotFailOperation(t *testing.T) {
	engine, _, events := newTestEngine()
	events.err = errors.New("redis down")

	if _, err := engine.SendRequest(context.Background(), alice, bob); err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
}

func TestEngineFriendshipScenario(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	accounts := &stubDirectory{accounts: map[string]models.Account{
		alice: {ID: alice, Username: "alice"},
		bob:   {ID: bob, Username: "bob"},
	}}
	query := Query{Relationships: store, Profiles: accounts}

	target, err := Resolver{Accounts: accounts}.Resolve(ctx, "", "bob")
	if err != nil {
		t.Fatalf("resolve bob: %v", err)
	}

	id := mustSend(t, engine, alice, target)
	rel, err := store.Find(ctx, id)
	if err != nil {
		t.Fatalf("find request: %v", err)
	}
	if rel.Status != models.StatusPending {
		t.Fatalf("expected pending request, got %s", rel.Status)
	}

	mustAccept(t, engine, bob, id)

	for _, viewer := range []string{alice, bob} {
		list, err := query.ListRelationships(ctx, viewer)
		if err != nil {
			t.Fatalf("list for %s: %v", viewer, err)
		}
		if len(list.Accepted) != 1 || len(list.Pending) != 0 {
			t.Fatalf("viewer %s: expected one friend and nothing pending, got %+v", viewer, list)
		}
	}

	if err := engine.RemoveFriendship(ctx, alice, bob); err != nil {
		t.Fatalf("remove friendship: %v", err)
	}
	for _, viewer := range []string{alice, bob} {
		list, err := query.ListRelationships(ctx, viewer)
		if err != nil {
			t.Fatalf("list for %s: %v", viewer, err)
		}
		if len(list.Accepted) != 0 || len(list.Pending) != 0 {
			t.Fatalf("viewer %s: expected empty lists, got %+v", viewer, list)
		}
	}

	if err := engine.RemoveFriendship(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestEngineConcurrentSendsCreateOneRequest(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := alice, bob
			if i%2 == 1 {
				from, to = bob, alice
			}
			_, err := engine.SendRequest(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
	if n := storedRecords(t, store); n != 1 {
		t.Fatalf("expected one stored record, got %d", n)
	}
}

package activitypub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/util"
	"github.com/google/uuid"
)

// fakeQueue records batches instead of publishing them
type fakeQueue struct {
	batches [][]domain.DeliverMessageBody
}

func (q *fakeQueue) SendBatch(messages []domain.DeliverMessageBody) error {
	q.batches = append(q.batches, messages)
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return nil, nil
}

func (q *fakeQueue) Close() error {
	return nil
}

func setupTestDB(t *testing.T) *db.DB {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return database
}

func createTestActor(t *testing.T, database *db.DB, id string, inbox string, isLocal bool) *domain.Actor {
	actor := &domain.Actor{
		Id:       id,
		Type:     "Person",
		Username: "someone",
		Domain:   "example.com",
		Properties: domain.ActorProperties{
			Inbox: inbox,
		},
		Cdate:       time.Now(),
		RefreshedAt: time.Now(),
		IsLocal:     isLocal,
	}
	if err := database.CreateActor(actor); err != nil {
		t.Fatalf("Failed to create actor %s: %v", id, err)
	}
	return actor
}

func TestDeliverToActorSuccess(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte

	inbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer inbox.Close()

	keypair := util.GeneratePemKeypair()
	signingKey, err := ParsePrivateKey(keypair.Private)
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}

	from := &domain.Actor{Id: "https://example.com/users/alice"}
	to := &domain.Actor{
		Id:         "https://remote.example/users/bob",
		Properties: domain.ActorProperties{Inbox: inbox.URL + "/inbox"},
	}

	activity := &domain.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		Id:      "https://example.com/activities/1",
		Type:    "Create",
		Actor:   from.Id,
	}

	if err := DeliverToActor(signingKey, from, to, activity); err != nil {
		t.Fatalf("Delivery failed: %v", err)
	}

	if gotHeaders.Get("Content-Type") != "application/activity+json" {
		t.Errorf("Unexpected content type: %s", gotHeaders.Get("Content-Type"))
	}

	if gotHeaders.Get("Accept") != acceptHeader {
		t.Errorf("Unexpected accept header: %s", gotHeaders.Get("Accept"))
	}

	if !strings.HasPrefix(gotHeaders.Get("Digest"), "SHA-256=") {
		t.Errorf("Expected SHA-256 digest, got %s", gotHeaders.Get("Digest"))
	}

	if gotHeaders.Get("Signature") == "" {
		t.Error("Expected a signed request")
	}

	if !strings.HasPrefix(gotHeaders.Get("User-Agent"), util.Name+"/") {
		t.Errorf("Unexpected user agent: %s", gotHeaders.Get("User-Agent"))
	}

	var delivered domain.Activity
	if err := json.Unmarshal(gotBody, &delivered); err != nil {
		t.Fatalf("Inbox received malformed body: %v", err)
	}
	if delivered.Id != activity.Id {
		t.Errorf("Expected activity %s, got %s", activity.Id, delivered.Id)
	}
}

func TestDeliverToActorErrorStatus(t *testing.T) {
	inbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer inbox.Close()

	keypair := util.GeneratePemKeypair()
	signingKey, err := ParsePrivateKey(keypair.Private)
	if err != nil {
		t.Fatalf("Failed to parse key: %v", err)
	}

	from := &domain.Actor{Id: "https://example.com/users/alice"}
	to := &domain.Actor{
		Id:         "https://remote.example/users/bob",
		Properties: domain.ActorProperties{Inbox: inbox.URL + "/inbox"},
	}

	err = DeliverToActor(signingKey, from, to, &domain.Activity{Type: "Create"})
	if err == nil {
		t.Fatal("Expected an error for a 500 response")
	}

	// The error names the inbox and the status so queue logs are actionable
	if !strings.Contains(err.Error(), inbox.URL+"/inbox") {
		t.Errorf("Expected inbox URL in error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status code in error, got: %v", err)
	}
}

func TestDeliverFollowersNoFollowers(t *testing.T) {
	database := setupTestDB(t)
	q := &fakeQueue{}

	from := createTestActor(t, database, "https://example.com/users/alice", "https://example.com/users/alice/inbox", true)

	activity := &domain.Activity{Type: "Create", Actor: from.Id}
	if err := DeliverFollowers(database, "kek", from, activity, q); err != nil {
		t.Fatalf("Expected zero-follower publish to be a no-op, got: %v", err)
	}

	if len(q.batches) != 0 {
		t.Errorf("Expected no batch enqueued, got %d", len(q.batches))
	}
}

func TestDeliverFollowersFanOut(t *testing.T) {
	database := setupTestDB(t)
	q := &fakeQueue{}

	from := createTestActor(t, database, "https://example.com/users/alice", "https://example.com/users/alice/inbox", true)

	followerIds := []string{
		"https://remote.example/users/bob",
		"https://remote.example/users/carol",
		"https://other.example/users/dave",
	}
	for _, id := range followerIds {
		createTestActor(t, database, id, id+"/inbox", false)
		follow := &domain.Follow{
			Id:            uuid.New().String(),
			ActorId:       id,
			TargetActorId: from.Id,
			State:         domain.FollowStateAccepted,
			CreatedAt:     time.Now(),
		}
		if err := database.CreateFollow(follow); err != nil {
			t.Fatalf("Failed to create follow: %v", err)
		}
	}

	activity := &domain.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		Id:      "https://example.com/activities/1",
		Type:    "Create",
		Actor:   from.Id,
		To:      []string{domain.PublicGroup},
	}

	if err := DeliverFollowers(database, "user-kek", from, activity, q); err != nil {
		t.Fatalf("Fan-out failed: %v", err)
	}

	if len(q.batches) != 1 {
		t.Fatalf("Expected a single batch, got %d", len(q.batches))
	}

	batch := q.batches[0]
	if len(batch) != len(followerIds) {
		t.Fatalf("Expected %d messages, got %d", len(followerIds), len(batch))
	}

	seen := map[string]bool{}
	for _, msg := range batch {
		if msg.ActorId != from.Id {
			t.Errorf("Unexpected sender: %s", msg.ActorId)
		}
		if msg.Type != domain.MessageTypeDeliver {
			t.Errorf("Unexpected message type: %s", msg.Type)
		}
		if msg.UserKEK != "user-kek" {
			t.Errorf("Expected the KEK handle to ride along, got %q", msg.UserKEK)
		}
		seen[msg.ToActorId] = true

		var delivered domain.Activity
		if err := json.Unmarshal(msg.Activity, &delivered); err != nil {
			t.Fatalf("Message carries malformed activity: %v", err)
		}
		if delivered.Id != activity.Id {
			t.Errorf("Expected activity %s, got %s", activity.Id, delivered.Id)
		}
	}

	for _, id := range followerIds {
		if !seen[id] {
			t.Errorf("No message addressed to follower %s", id)
		}
	}
}

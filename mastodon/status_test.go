package mastodon

import (
	"testing"
	"time"

	"github.com/deemkeen/loxodon/domain"
)

func TestToStatusFromRow(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &domain.TimelineRow{
		ObjectId:        "https://example.com/objects/1",
		ObjectType:      "Note",
		Properties:      `{"content":"hello world","sensitive":true}`,
		ActorId:         "https://example.com/users/alice",
		ActorCdate:      published.Add(-24 * time.Hour),
		ActorProperties: `{"name":"Alice","summary":"just alice"}`,
		PublishedDate:   published,
		FavouritesCount: 3,
		ReblogsCount:    1,
		RepliesCount:    2,
		Favourited:      true,
	}

	status := toStatusFromRow("example.com", row)
	if status == nil {
		t.Fatal("Expected a status")
	}

	if status.Content != "hello world" {
		t.Errorf("Unexpected content: %s", status.Content)
	}
	if !status.Sensitive {
		t.Error("Expected sensitive flag")
	}
	if status.Account.Username != "alice" {
		t.Errorf("Unexpected username: %s", status.Account.Username)
	}
	if status.Account.Acct != "alice" {
		t.Errorf("Expected bare acct for a local actor, got %s", status.Account.Acct)
	}
	if status.Account.DisplayName != "Alice" {
		t.Errorf("Unexpected display name: %s", status.Account.DisplayName)
	}
	if status.FavouritesCount != 3 || status.ReblogsCount != 1 || status.RepliesCount != 2 {
		t.Errorf("Unexpected counts: %d/%d/%d", status.FavouritesCount, status.ReblogsCount, status.RepliesCount)
	}
	if !status.Favourited || status.Reblogged {
		t.Error("Unexpected viewer flags")
	}
}

func TestToStatusFromRowRemoteAcct(t *testing.T) {
	row := &domain.TimelineRow{
		ObjectId:        "https://remote.example/objects/1",
		Properties:      `{"content":"hi"}`,
		ActorId:         "https://remote.example/users/bob",
		ActorProperties: `{}`,
		PublishedDate:   time.Now(),
	}

	status := toStatusFromRow("example.com", row)
	if status == nil {
		t.Fatal("Expected a status")
	}

	if status.Account.Acct != "bob@remote.example" {
		t.Errorf("Expected username@domain for a remote actor, got %s", status.Account.Acct)
	}
}

func TestToStatusesSkipsMalformedRows(t *testing.T) {
	rows := []domain.TimelineRow{
		{
			ObjectId:        "https://example.com/objects/good",
			Properties:      `{"content":"fine"}`,
			ActorId:         "https://example.com/users/alice",
			ActorProperties: `{}`,
			PublishedDate:   time.Now(),
		},
		{
			ObjectId:        "https://example.com/objects/bad",
			Properties:      `{not json`,
			ActorId:         "https://example.com/users/alice",
			ActorProperties: `{}`,
			PublishedDate:   time.Now(),
		},
		{
			ObjectId:        "https://example.com/objects/bad-actor",
			Properties:      `{"content":"fine"}`,
			ActorId:         "https://example.com/users/alice",
			ActorProperties: `{not json`,
			PublishedDate:   time.Now(),
		},
	}

	statuses := toStatuses("example.com", &rows)

	if len(statuses) != 1 {
		t.Fatalf("Expected malformed rows to be skipped, got %d statuses", len(statuses))
	}

	if statuses[0].Id != "https://example.com/objects/good" {
		t.Errorf("Expected the valid row to survive, got %s", statuses[0].Id)
	}
}

func TestToStatusesNilRows(t *testing.T) {
	statuses := toStatuses("example.com", nil)
	if len(statuses) != 0 {
		t.Errorf("Expected empty slice for nil rows, got %d", len(statuses))
	}
}

func TestExtractUsername(t *testing.T) {
	cases := map[string]string{
		"https://example.com/users/alice": "alice",
		"https://example.com/@alice":      "alice",
		"alice":                           "alice",
	}

	for uri, expected := range cases {
		if got := extractUsername(uri); got != expected {
			t.Errorf("extractUsername(%s): expected %s, got %s", uri, expected, got)
		}
	}
}

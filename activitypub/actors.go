package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/util"
)

// actorCacheMaxAge is how long a cached remote actor stays fresh before a
// refetch; overwrite-on-refresh, last writer wins
const actorCacheMaxAge = 24 * time.Hour

// ActorResponse represents the JSON structure of an ActivityPub actor
type ActorResponse struct {
	Context           interface{} `json:"@context"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	PreferredUsername string      `json:"preferredUsername"`
	Name              string      `json:"name"`
	Summary           string      `json:"summary"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox"`
	Followers         string      `json:"followers"`
	Icon              struct {
		Type      string `json:"type"`
		MediaType string `json:"mediaType"`
		URL       string `json:"url"`
	} `json:"icon"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// GetAndCache returns an actor from the store or fetches it if not cached or
// stale. Safe to call from concurrent consumers; the store upsert is
// idempotent.
func GetAndCache(actorURI string, database *db.DB) (*domain.Actor, error) {
	// Check cache first
	err, cached := database.ReadActorById(actorURI)
	if err == nil && cached != nil {
		if cached.IsLocal || time.Since(cached.RefreshedAt) < actorCacheMaxAge {
			return cached, nil
		}
	}

	// Fetch fresh data
	return FetchRemoteActor(actorURI, database)
}

// FetchRemoteActor fetches an actor from a remote server and stores it
func FetchRemoteActor(actorURI string, database *db.DB) (*domain.Actor, error) {
	// Create HTTP request with Accept: application/activity+json
	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", util.UserAgent())

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	// Parse ActivityPub actor JSON
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var actor ActorResponse
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	// Validate required fields
	if actor.ID == "" || actor.Inbox == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	// Extract domain from actor URI
	domainName, err := extractDomain(actor.ID)
	if err != nil {
		return nil, err
	}

	actorType := actor.Type
	if actorType == "" {
		actorType = "Person"
	}

	remoteActor := &domain.Actor{
		Id:       actor.ID,
		Type:     actorType,
		Username: actor.PreferredUsername,
		Domain:   domainName,
		Properties: domain.ActorProperties{
			Name:         actor.Name,
			Summary:      actor.Summary,
			Inbox:        actor.Inbox,
			Outbox:       actor.Outbox,
			Followers:    actor.Followers,
			PublicKeyPem: actor.PublicKey.PublicKeyPem,
			AvatarURL:    actor.Icon.URL,
		},
		Cdate:       time.Now(),
		RefreshedAt: time.Now(),
	}

	// Store in database, refreshing any stale copy
	if err := database.UpsertActor(remoteActor); err != nil {
		return nil, fmt.Errorf("failed to store remote actor: %w", err)
	}

	return remoteActor, nil
}

// extractDomain extracts the domain from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}

	return parsed.Host, nil
}

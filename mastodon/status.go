package mastodon

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/deemkeen/loxodon/domain"
)

// Account is the public representation of a status author
type Account struct {
	Id          string    `json:"id"`
	Username    string    `json:"username"`
	Acct        string    `json:"acct"`
	DisplayName string    `json:"display_name"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
	Avatar      string    `json:"avatar,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// Status is the public representation of one timeline entry
type Status struct {
	Id              string    `json:"id"`
	URI             string    `json:"uri"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	Sensitive       bool      `json:"sensitive"`
	Account         Account   `json:"account"`
	FavouritesCount int64     `json:"favourites_count"`
	ReblogsCount    int64     `json:"reblogs_count"`
	RepliesCount    int64     `json:"replies_count"`
	Reblogged       bool      `json:"reblogged"`
	Favourited      bool      `json:"favourited"`
}

// toStatusFromRow maps one raw timeline row to a status. A row whose stored
// properties cannot be parsed yields nil and is skipped by the caller;
// timeline assembly is best effort over individually corruptible rows.
func toStatusFromRow(domainName string, row *domain.TimelineRow) *Status {
	var objectProps domain.ObjectProperties
	if err := json.Unmarshal([]byte(row.Properties), &objectProps); err != nil {
		return nil
	}

	var actorProps domain.ActorProperties
	if err := json.Unmarshal([]byte(row.ActorProperties), &actorProps); err != nil {
		return nil
	}

	username := extractUsername(row.ActorId)

	return &Status{
		Id:        row.ObjectId,
		URI:       row.ObjectId,
		Content:   objectProps.Content,
		CreatedAt: row.PublishedDate,
		Sensitive: objectProps.Sensitive,
		Account: Account{
			Id:          row.ActorId,
			Username:    username,
			Acct:        acct(domainName, username, row.ActorId),
			DisplayName: actorProps.Name,
			URL:         row.ActorId,
			CreatedAt:   row.ActorCdate,
			Avatar:      actorProps.AvatarURL,
			Note:        actorProps.Summary,
		},
		FavouritesCount: row.FavouritesCount,
		ReblogsCount:    row.ReblogsCount,
		RepliesCount:    row.RepliesCount,
		Reblogged:       row.Reblogged,
		Favourited:      row.Favourited,
	}
}

// acct renders the webfinger style handle: bare username for local actors,
// username@domain for remote ones
func acct(domainName string, username string, actorURI string) string {
	parsed, err := url.Parse(actorURI)
	if err != nil || parsed.Host == domainName {
		return username
	}
	return username + "@" + parsed.Host
}

// extractUsername extracts the username from various actor URI formats
// Examples:
// - "https://example.com/users/alice" -> "alice"
// - "https://example.com/@alice" -> "alice"
func extractUsername(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) > 0 {
		username := parts[len(parts)-1]
		// Remove @ prefix if present
		return strings.TrimPrefix(username, "@")
	}
	return ""
}

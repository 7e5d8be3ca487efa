package mastodon

import (
	"encoding/json"
	"fmt"

	"github.com/deemkeen/loxodon/cache"
	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/metrics"
)

const defaultPageSize = 20

// GetHomeTimeline computes an actor's personalized feed by joining the
// accepted follow graph against the object store. The newest page of
// top-level Notes, most recent first.
func GetHomeTimeline(domainName string, database *db.DB, actor *domain.Actor) ([]Status, error) {
	err, following := database.ReadAcceptedFollowing(actor.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to read following: %w", err)
	}

	followingIds := []string{}
	followersURLs := []string{}

	if following != nil {
		for _, target := range *following {
			followingIds = append(followingIds, target.Id)
			followersURLs = append(followersURLs, target.FollowersURL())
		}
	}

	// follow ourself to see our own statuses in the home timeline
	followingIds = append(followingIds, actor.Id)

	err, rows := database.ReadHomeTimeline(actor.Id, followingIds, followersURLs, defaultPageSize)
	if err != nil {
		return nil, err
	}

	return toStatuses(domainName, rows), nil
}

// GetPublicTimeline computes the server-wide feed of publicly visible
// objects with optional locality filtering and offset pagination. No
// per-viewer flags; there is no viewer on a public read.
func GetPublicTimeline(domainName string, database *db.DB, localPreference domain.LocalPreference, offset int) ([]Status, error) {
	err, rows := database.ReadPublicTimeline(localPreference, defaultPageSize, offset)
	if err != nil {
		return nil, err
	}

	return toStatuses(domainName, rows), nil
}

// PregenerateTimelines computes the actor's home timeline and writes it
// through the cache, moving the read cost off the request-serving path
func PregenerateTimelines(domainName string, database *db.DB, c cache.Cache, actor *domain.Actor) error {
	timeline, err := GetHomeTimeline(domainName, database, actor)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	if err := c.Put(actor.Id+"/timeline/home", payload); err != nil {
		return err
	}

	metrics.TimelinesPregenerated.Inc()
	return nil
}

func toStatuses(domainName string, rows *[]domain.TimelineRow) []Status {
	out := []Status{}
	if rows == nil {
		return out
	}

	for i := range *rows {
		status := toStatusFromRow(domainName, &(*rows)[i])
		if status != nil {
			out = append(out, *status)
		}
	}

	return out
}

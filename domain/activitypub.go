package domain

import (
	"time"
)

// PublicGroup is the special ActivityStreams collection marking an object as
// visible to everyone
const PublicGroup = "https://www.w3.org/ns/activitystreams#Public"

const (
	FollowStatePending  = "pending"
	FollowStateAccepted = "accepted"
)

// Actor represents a federated identity, local or remote. Remote actors are
// cached copies refreshed from their origin server.
type Actor struct {
	Id          string // ActivityPub actor URI
	Type        string
	Username    string
	Domain      string
	Properties  ActorProperties
	Cdate       time.Time
	RefreshedAt time.Time
	IsLocal     bool
	PrivKey     []byte // sealed private key PEM, local actors only
	PrivKeySalt []byte
}

type ActorProperties struct {
	Name         string `json:"name,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Inbox        string `json:"inbox"`
	Outbox       string `json:"outbox,omitempty"`
	Followers    string `json:"followers,omitempty"`
	PublicKeyPem string `json:"publicKeyPem,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
}

// Follow represents a directed follow edge between two actors. Only accepted
// edges participate in timelines and delivery fan-out.
type Follow struct {
	Id            string
	ActorId       string // the follower
	TargetActorId string // the followee
	State         string
	CreatedAt     time.Time
}

// Activity is the protocol-level envelope describing an action and its payload.
// It is produced once by the publishing caller and consumed read-only.
type Activity struct {
	Context   interface{} `json:"@context,omitempty"`
	Id        string      `json:"id"`
	Type      string      `json:"type"`
	Actor     string      `json:"actor"`
	Published string      `json:"published,omitempty"`
	To        []string    `json:"to,omitempty"`
	Cc        []string    `json:"cc,omitempty"`
	Object    interface{} `json:"object,omitempty"`
}

// FollowingTarget is one accepted follow edge resolved for timeline queries:
// the followee id plus its stored followers collection URL, empty when the
// actor document never carried one
type FollowingTarget struct {
	Id        string
	Followers string
}

// FollowersURL returns the target's followers collection URI, guessing a
// conventional one when the actor document didn't carry it
func (t *FollowingTarget) FollowersURL() string {
	if t.Followers != "" {
		return t.Followers
	}
	return t.Id + "/followers"
}

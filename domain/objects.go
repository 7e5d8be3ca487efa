package domain

import (
	"time"
)

// Object is a persisted ActivityPub object, typically a Note
type Object struct {
	Id         string
	Type       string
	Properties ObjectProperties
	Local      bool
	Cdate      time.Time
}

type ObjectProperties struct {
	Content   string  `json:"content"`
	InReplyTo *string `json:"inReplyTo,omitempty"`
	Published string  `json:"published,omitempty"`
	Sensitive bool    `json:"sensitive,omitempty"`
}

// OutboxEntry records that an actor published an object visible to a target,
// either PublicGroup or a followers collection URI
type OutboxEntry struct {
	Id            string
	ActorId       string
	ObjectId      string
	Target        string
	PublishedDate time.Time
}

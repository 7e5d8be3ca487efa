package domain

import (
	"time"
)

// LocalPreference filters the public timeline by object locality
type LocalPreference int

const (
	NotSet LocalPreference = iota
	OnlyLocal
	OnlyRemote
)

// TimelineRow is one raw row of the timeline join query. Properties columns
// stay unparsed here; mapping to a status happens row by row and may fail per
// row without failing the query.
type TimelineRow struct {
	ObjectId         string
	ObjectType       string
	Properties       string
	Local            bool
	ObjectCdate      time.Time
	ActorId          string
	ActorCdate       time.Time
	ActorProperties  string
	PublisherActorId string
	PublishedDate    time.Time
	FavouritesCount  int64
	ReblogsCount     int64
	RepliesCount     int64
	Reblogged        bool
	Favourited       bool
}

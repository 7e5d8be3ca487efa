package domain

import (
	"encoding/json"
)

type MessageType string

const MessageTypeDeliver MessageType = "deliver"

// DeliverMessageBody is the payload of one queued delivery. It always targets
// exactly one recipient; fan-out happens at enqueue time. Every field must be
// a plain serializable value with no live handles, since the body crosses the
// queue boundary.
type DeliverMessageBody struct {
	Activity  json.RawMessage `json:"activity"`
	ActorId   string          `json:"actorId"`
	ToActorId string          `json:"toActorId"`
	Type      MessageType     `json:"type"`
	UserKEK   string          `json:"userKEK"`
}

package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/metrics"
	"github.com/deemkeen/loxodon/queue"
	"github.com/deemkeen/loxodon/util"
)

// Env carries the collaborators the delivery consumer needs
type Env struct {
	DB   *db.DB
	Conf *util.AppConfig
}

// HandleDeliverMessage processes one dequeued deliver message: resolve the
// recipient, recover the sender's signing key, deliver. An unresolvable
// recipient is logged and dropped, never retried; any other failure
// propagates so the queue's redelivery policy applies.
func HandleDeliverMessage(env *Env, actor *domain.Actor, msg *domain.DeliverMessageBody) error {
	targetActor, err := GetAndCache(msg.ToActorId, env.DB)
	if err != nil || targetActor == nil {
		log.Printf("Consumer: actor %s not found, dropping delivery: %v", msg.ToActorId, err)
		metrics.DeliveriesDropped.Inc()
		return nil
	}

	signingKey, err := GetSigningKey(msg.UserKEK, actor)
	if err != nil {
		return fmt.Errorf("failed to recover signing key: %w", err)
	}

	return DeliverToActor(signingKey, actor, targetActor, msg.Activity)
}

// StartDeliveryConsumer subscribes to the delivery topic and processes
// messages until the context is cancelled. Messages are independent; a Nack
// leaves redelivery to the queue.
func StartDeliveryConsumer(ctx context.Context, env *Env, q queue.Queue) error {
	messages, err := q.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to delivery topic: %w", err)
	}

	log.Println("Starting delivery consumer...")

	go func() {
		for msg := range messages {
			processDeliverMessage(env, msg)
		}
	}()

	return nil
}

func processDeliverMessage(env *Env, msg *message.Message) {
	var body domain.DeliverMessageBody
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		log.Printf("Consumer: dropping malformed message %s: %v", msg.UUID, err)
		msg.Ack()
		return
	}

	if body.Type != domain.MessageTypeDeliver {
		log.Printf("Consumer: unexpected message type %q, dropping %s", body.Type, msg.UUID)
		msg.Ack()
		return
	}

	err, actor := env.DB.ReadActorById(body.ActorId)
	if err != nil || actor == nil {
		log.Printf("Consumer: unknown sending actor %s, dropping %s", body.ActorId, msg.UUID)
		msg.Ack()
		return
	}

	if err := HandleDeliverMessage(env, actor, &body); err != nil {
		log.Printf("Consumer: delivery failed, leaving to redelivery: %v", err)
		metrics.DeliveriesFailed.Inc()
		msg.Nack()
		return
	}

	msg.Ack()
}

package activitypub

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/loxodon/db"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/metrics"
	"github.com/deemkeen/loxodon/queue"
	"github.com/deemkeen/loxodon/util"
)

const acceptHeader = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

var deliveryClient = &http.Client{Timeout: 30 * time.Second}

// DeliverToActor sends one signed activity to one recipient's inbox. There is
// no retry logic here; redelivery is the queue's job.
func DeliverToActor(signingKey *rsa.PrivateKey, from *domain.Actor, to *domain.Actor, activity any) error {
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequest("POST", to.Properties.Inbox, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", util.UserAgent())
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", GenerateDigestHeader(body))

	if err := SignRequest(req, signingKey, from.Id); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := deliveryClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery to %s failed: %w", to.Properties.Inbox, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delivery to %s returned %d: %s", to.Properties.Inbox, resp.StatusCode, string(respBody))
	}

	metrics.DeliveriesTotal.Inc()
	return nil
}

// DeliverFollowers fans one activity out to every accepted follower of the
// sending actor, one deliver message per follower, submitted as a single
// queue batch. An actor with zero followers publishing is a normal no-op.
func DeliverFollowers(database *db.DB, userKEK string, from *domain.Actor, activity *domain.Activity, q queue.Queue) error {
	err, followers := database.ReadFollowerIds(from.Id)
	if err != nil {
		return fmt.Errorf("failed to read followers: %w", err)
	}

	if len(followers) == 0 {
		// No one is following the actor so no updates to send. Sad.
		return nil
	}

	// Snapshot the activity into a plain serializable form; nothing crossing
	// the queue boundary may carry live handles or reference cycles.
	raw, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	messages := make([]domain.DeliverMessageBody, 0, len(followers))
	for _, followerId := range followers {
		messages = append(messages, domain.DeliverMessageBody{
			Activity:  raw,
			ActorId:   from.Id,
			ToActorId: followerId,
			Type:      domain.MessageTypeDeliver,
			UserKEK:   userKEK,
		})
	}

	if err := q.SendBatch(messages); err != nil {
		return err
	}

	metrics.MessagesEnqueued.Add(float64(len(messages)))
	log.Printf("Deliver: Queued %s activity for %s to %d followers", activity.Type, from.Id, len(messages))
	return nil
}

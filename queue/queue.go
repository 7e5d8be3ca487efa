package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/deemkeen/loxodon/domain"
	"github.com/deemkeen/loxodon/util"
	natsgo "github.com/nats-io/nats.go"
)

// Queue is the durable, at-least-once channel carrying deliver messages from
// the publishing side to the delivery consumer. Messages enqueued in one
// SendBatch call may be processed individually and out of order downstream.
type Queue interface {
	SendBatch(messages []domain.DeliverMessageBody) error
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
	Close() error
}

// DeliveryQueue wraps a watermill publisher/subscriber pair on one topic
type DeliveryQueue struct {
	topic      string
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool // publisher and subscriber are the same pubsub
}

// NewQueue builds the delivery queue for the configured driver: NATS
// JetStream for production, an in-process go channel otherwise.
func NewQueue(conf *util.AppConfig, logger watermill.LoggerAdapter) (*DeliveryQueue, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	if conf.Conf.QueueDriver == "nats" {
		return newNatsQueue(conf, logger)
	}
	return newChannelQueue(conf, logger), nil
}

func newNatsQueue(conf *util.AppConfig, logger watermill.LoggerAdapter) (*DeliveryQueue, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         conf.Conf.NatsUrl,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create delivery publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              conf.Conf.NatsUrl,
		QueueGroupPrefix: util.Name,
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			DurablePrefix: util.Name,
		},
	}, logger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("create delivery subscriber: %w", err)
	}

	return &DeliveryQueue{
		topic:      conf.Conf.DeliveryTopic,
		publisher:  publisher,
		subscriber: subscriber,
	}, nil
}

func newChannelQueue(conf *util.AppConfig, logger watermill.LoggerAdapter) *DeliveryQueue {
	channel := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	return &DeliveryQueue{
		topic:      conf.Conf.DeliveryTopic,
		publisher:  channel,
		subscriber: channel,
		shared:     true,
	}
}

// SendBatch submits all messages of one fan-out as a single publish call, so
// a publish is one atomic enqueue operation from the caller's perspective.
func (q *DeliveryQueue) SendBatch(bodies []domain.DeliverMessageBody) error {
	if len(bodies) == 0 {
		return nil
	}

	messages := make([]*message.Message, 0, len(bodies))
	for _, body := range bodies {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal deliver message: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		messages = append(messages, msg)
	}

	if err := q.publisher.Publish(q.topic, messages...); err != nil {
		return fmt.Errorf("failed to enqueue deliver batch: %w", err)
	}
	return nil
}

func (q *DeliveryQueue) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return q.subscriber.Subscribe(ctx, q.topic)
}

func (q *DeliveryQueue) Close() error {
	if err := q.publisher.Close(); err != nil {
		return err
	}
	if !q.shared {
		return q.subscriber.Close()
	}
	return nil
}

package events

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel returns an in-process bus for development and tests.
func NewGoChannel(logger *slog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
	return NewBus(pubSub, pubSub, logger)
}

// NewKafka returns a bus backed by Kafka. consumerGroup isolates each
// subscribing service.
func NewKafka(brokers []string, consumerGroup string, logger *slog.Logger) (*Bus, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("kafka brokers are not configured")
	}
	wmLogger := watermill.NewSlogLogger(logger)

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         consumerGroup,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
		},
		wmLogger,
	)
	if err != nil {
		_ = subscriber.Close()
		return nil, err
	}
	return NewBus(publisher, subscriber, logger), nil
}

// Open returns the bus selected by kind, "gochannel" or "kafka".
func Open(kind string, brokers []string, consumerGroup string, logger *slog.Logger) (*Bus, error) {
	switch kind {
	case "", "gochannel":
		return NewGoChannel(logger), nil
	case "kafka":
		return NewKafka(brokers, consumerGroup, logger)
	default:
		return nil, fmt.Errorf("unknown event bus %q", kind)
	}
}

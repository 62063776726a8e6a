package broadcaster

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"

	"chute/service"
)

// Broadcaster periodically publishes pipeline health events so
// operators can watch depth, spill, and drop rates from the bus.
type Broadcaster struct {
	pipe     *service.Pipeline
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

type Event struct {
	V             int    `json:"v"`
	Type          string `json:"type"`
	Time          int64  `json:"time"`
	QueueDepth    int    `json:"queue_depth"`
	Segments      int    `json:"segments"`
	PoolAvailable int    `json:"pool_available"`
	Ingested      uint64 `json:"ingested"`
	Drained       uint64 `json:"drained"`
	Spilled       uint64 `json:"spilled"`
	Replayed      uint64 `json:"replayed"`
	Dropped       uint64 `json:"dropped"`
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	pipe *service.Pipeline,
	brokers []string,
	topic string,
	interval time.Duration,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Broadcaster{
		pipe:     pipe,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

func (b *Broadcaster) Start(ctx context.Context) {
	log.Println("[broadcaster] started")

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				b.publishOnce()
			}
		}
	}()
}

func (b *Broadcaster) publishOnce() {
	st := b.pipe.Stats()

	ev := Event{
		V:             1,
		Type:          "pipeline_stats",
		Time:          time.Now().UnixNano(),
		QueueDepth:    st.QueueDepth,
		Segments:      st.Segments,
		PoolAvailable: st.PoolAvailable,
		Ingested:      st.Ingested,
		Drained:       st.Drained,
		Spilled:       st.Spilled,
		Replayed:      st.Replayed,
		Dropped:       st.Dropped,
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		log.Printf("[broadcaster] publish failed: %v", err)
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}

package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// BorrowEventsTopic carries checkout/checkin audit events.
const BorrowEventsTopic = "library.borrow-events"

type Config struct {
	Addrs []string `yaml:"addrs" envconfig:"KAFKA_ADDRS"`
}

// Enabled reports whether brokers are configured at all; the service runs
// without kafka when they are not.
func (c Config) Enabled() bool {
	return len(c.Addrs) > 0
}

// BorrowEvent is the payload published on every successful checkout and
// check-in.
type BorrowEvent struct {
	Event     string    `json:"event"` // CHECKOUT | CHECKIN
	RecordUid string    `json:"recordUid"`
	BookUid   string    `json:"bookUid"`
	UserID    int64     `json:"userId"`
	At        time.Time `json:"at"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

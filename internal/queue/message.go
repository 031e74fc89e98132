// Package queue implements the ingestion buffer that sits between the
// admission endpoint and the waiting room.  Admission requests are
// published to RabbitMQ, partitioned by product id, and a background
// consumer performs the waiting room insert.
package queue

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/iliyamo/flash-sale/internal/waitroom"
)

// EntryMessage is the buffer payload for one admission.  The field set must
// stay in lock-step with waitroom.Key because the consumer rebuilds the
// waiting room key from it.
type EntryMessage struct {
	SessionID  string `json:"session_id"`
	ResourceID uint64 `json:"product_id"`
	Token      string `json:"token"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds at admission
}

// Key returns the waiting room key for the message.
func (m EntryMessage) Key() string {
	return waitroom.Key(m.SessionID, m.ResourceID, m.Token)
}

// Validate rejects messages that can not produce a usable key.
func (m EntryMessage) Validate() error {
	if m.SessionID == "" || m.Token == "" || m.ResourceID == 0 || m.Timestamp <= 0 {
		return fmt.Errorf("invalid entry message: %+v", m)
	}
	return nil
}

// Partition maps a product id onto one of n partitions.  All messages for
// one product land in the same partition and are therefore consumed in
// publish order.
func Partition(resourceID uint64, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatUint(resourceID, 10)))
	return int(h.Sum32() % uint32(n))
}

// partitionName is both the routing key and the queue name of a partition.
func partitionName(prefix string, p int) string {
	return prefix + "." + strconv.Itoa(p)
}

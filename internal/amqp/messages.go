package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptRecordedMessage tells the sync worker that a receipt landed in the
// ledger. It carries only the ID; the worker fetches the full receipt from
// the database so the queue never holds stale copies.
type ReceiptRecordedMessage struct {
	ReceiptID string    `json:"receipt_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptRecordedMessage(receiptID string) *ReceiptRecordedMessage {
	return &ReceiptRecordedMessage{
		ReceiptID: receiptID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ReceiptRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptRecordedMessageFromJSON creates a message from JSON bytes.
func ReceiptRecordedMessageFromJSON(data []byte) (*ReceiptRecordedMessage, error) {
	var msg ReceiptRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

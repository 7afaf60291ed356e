package schema

import (
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var payloadCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// ItemKind tags the payload carried by a queue item. The push phase
// dispatches on it with an exhaustive switch; an unknown kind is a
// terminal error, never retried.
type ItemKind string

const (
	KindProductUpsert ItemKind = "product-upsert"
	KindSaleUpsert    ItemKind = "sale-upsert"
	KindProductDelete ItemKind = "product-delete"
	KindSaleDelete    ItemKind = "sale-delete"
)

// Valid reports whether the kind is one of the four known mutations.
func (k ItemKind) Valid() bool {
	switch k {
	case KindProductUpsert, KindSaleUpsert, KindProductDelete, KindSaleDelete:
		return true
	}
	return false
}

// DeletePayload is the payload for the two delete kinds. Upsert kinds
// carry a full entity snapshot instead.
type DeletePayload struct {
	ID string `json:"id"`
}

// QueueItem is one durable record of a pending local mutation.
//
// ID is assigned by the store's sequence and defines processing order:
// items are drained strictly FIFO so that, for example, a product created
// offline always reaches the remote store before a sale that references it.
type QueueItem struct {
	ID        int64           `json:"id"`
	Kind      ItemKind        `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int             `json:"retries"`
}

// NewProductUpsertItem builds a queue item carrying a product snapshot.
func NewProductUpsertItem(p *Product) (*QueueItem, error) {
	return newItem(KindProductUpsert, p)
}

// NewSaleUpsertItem builds a queue item carrying a sale snapshot.
func NewSaleUpsertItem(s *Sale) (*QueueItem, error) {
	return newItem(KindSaleUpsert, s)
}

// NewProductDeleteItem builds a queue item instructing a remote delete.
func NewProductDeleteItem(id string) (*QueueItem, error) {
	return newItem(KindProductDelete, DeletePayload{ID: id})
}

// NewSaleDeleteItem builds a queue item instructing a remote delete.
func NewSaleDeleteItem(id string) (*QueueItem, error) {
	return newItem(KindSaleDelete, DeletePayload{ID: id})
}

func newItem(kind ItemKind, payload any) (*QueueItem, error) {
	raw, err := payloadCodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return &QueueItem{
		Kind:      kind,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Product decodes the payload of a product-upsert item.
func (i *QueueItem) Product() (*Product, error) {
	if i.Kind != KindProductUpsert {
		return nil, fmt.Errorf("queue item %d is %s, not %s", i.ID, i.Kind, KindProductUpsert)
	}
	var p Product
	if err := payloadCodec.Unmarshal(i.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode product payload of item %d: %w", i.ID, err)
	}
	return &p, nil
}

// Sale decodes the payload of a sale-upsert item.
func (i *QueueItem) Sale() (*Sale, error) {
	if i.Kind != KindSaleUpsert {
		return nil, fmt.Errorf("queue item %d is %s, not %s", i.ID, i.Kind, KindSaleUpsert)
	}
	var s Sale
	if err := payloadCodec.Unmarshal(i.Payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode sale payload of item %d: %w", i.ID, err)
	}
	return &s, nil
}

// DeleteID decodes the entity id of a delete item.
func (i *QueueItem) DeleteID() (string, error) {
	if i.Kind != KindProductDelete && i.Kind != KindSaleDelete {
		return "", fmt.Errorf("queue item %d is %s, not a delete", i.ID, i.Kind)
	}
	var d DeletePayload
	if err := payloadCodec.Unmarshal(i.Payload, &d); err != nil {
		return "", fmt.Errorf("failed to decode delete payload of item %d: %w", i.ID, err)
	}
	if d.ID == "" {
		return "", fmt.Errorf("delete payload of item %d has no id", i.ID)
	}
	return d.ID, nil
}

// EntityID returns the id of the entity the item references, whatever the
// kind. Used to decide which row to flag as synced after a push.
func (i *QueueItem) EntityID() (string, error) {
	switch i.Kind {
	case KindProductUpsert:
		p, err := i.Product()
		if err != nil {
			return "", err
		}
		return p.ID, nil
	case KindSaleUpsert:
		s, err := i.Sale()
		if err != nil {
			return "", err
		}
		return s.ID, nil
	case KindProductDelete, KindSaleDelete:
		return i.DeleteID()
	default:
		return "", fmt.Errorf("unknown queue item kind %q", i.Kind)
	}
}

// DeadLetter is a queue item that was abandoned, either because the remote
// store rejected it permanently or because it hit the retry ceiling.
// Items are moved here instead of being dropped so an operator can inspect
// what never made it to the remote store.
type DeadLetter struct {
	ID       int64           `json:"id"`
	QueueID  int64           `json:"queue_id"`
	Kind     ItemKind        `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Retries  int             `json:"retries"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}

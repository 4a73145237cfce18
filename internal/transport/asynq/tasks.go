// Package asynq consumes product-changed events from an asynq queue and
// re-indexes the named product.
package asynq

import (
	"encoding/json"
	"errors"
	"fmt"

	hibiken "github.com/hibiken/asynq"
)

// TypeProductChanged is the task type of a product-changed event.
const TypeProductChanged = "product:changed"

// ProductChangedPayload is the task payload.
type ProductChangedPayload struct {
	ProductID string `json:"productId"`
}

// NewProductChangedTask creates a product-changed task. The task is never
// retried by the queue; the outbox owns delivery guarantees.
func NewProductChangedTask(productID string) (*hibiken.Task, error) {
	if productID == "" {
		return nil, errors.New("product ID is required")
	}
	payload, err := json.Marshal(ProductChangedPayload{ProductID: productID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return hibiken.NewTask(TypeProductChanged, payload, hibiken.MaxRetry(0)), nil
}

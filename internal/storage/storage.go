// Package storage provides the persistent key/value slots the console keeps
// between runs: the session, the training form defaults and the mirror of the
// in-flight training task.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a slot holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Well-known slots.
const (
	KeySession        = "session"
	KeyTrainingParams = "training_params_v1"
	KeyTrainingTask   = "training_task_v1"
)

// Storage is a string-valued key/value store. Implementations must be safe
// for concurrent use.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Package storage provides the string-keyed persistence surfaces the
// payment history is written to.
package storage

import "errors"

// KV is a synchronous string-keyed store scoped to one device or user.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

var ErrInvalidKey = errors.New("invalid storage key")

package config

import "errors"

var (
	// ErrInvalidValue indicates a config field holds an out-of-domain value.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrPredicateClosed indicates use of a predicate after Close.
	ErrPredicateClosed = errors.New("predicate closed")
)

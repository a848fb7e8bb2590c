package services

import "github.com/oklog/ulid/v2"

const orderNumberPrefix = "ORD-"

// NewOrderNumber returns a unique, time-ordered public order number.
func NewOrderNumber() string {
	return orderNumberPrefix + ulid.Make().String()
}

package router

import "errors"

var (
	ErrProducerExists   = errors.New("router: producer already registered")
	ErrProducerNotFound = errors.New("router: producer not found")
	ErrConsumerExists   = errors.New("router: consumer already assigned to a producer")
	ErrConsumerNotFound = errors.New("router: consumer not found")
)

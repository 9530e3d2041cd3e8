package messaging

import "errors"

var (
	errConsumerClosed    = errors.New("publisher is closed")
	errBrokerUnreachable = errors.New("broker unreachable")
)

package queue

import "errors"

var ErrQueueFull = errors.New("queue: tier is at capacity")

// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package events wraps the Kafka transport used for inbound queues (§6.1),
// the outbound broadcast topic (§6.2) and the outbox (§4.N), adapted from
// the teacher framework's events package.
package events

import (
	"strconv"
)

// HeaderNotificationID is the header carrying a History row's id, read by
// the feedback pipeline (§4.L) to correlate provider callbacks with sends.
const HeaderNotificationID = "NotificationId"

// HeaderDeliveryCount tracks re-delivery attempts for the dead-letter
// policy (§5 "dead-letter after N attempts"). This header was not named by
// the source system; the count is a supplemented mechanism (see DESIGN.md).
const HeaderDeliveryCount = "x-delivery-count"

// HeaderTraceID / HeaderSpanID propagate the active span across the bus so
// a consumer can continue the same trace (§9 "aspect-based tracing"
// replaced by explicit propagation).
const (
	HeaderTraceID = "trace_id"
	HeaderSpanID  = "span_id"
)

// Message is the transport-agnostic envelope handed to consumers: a raw
// payload plus headers, decoupled from the confluent-kafka-go message type
// so planners and listeners never import the Kafka SDK directly.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int32
	Offset    int64
}

// DeliveryCount parses HeaderDeliveryCount, defaulting to 0 (first attempt)
// when absent or malformed.
func (m *Message) DeliveryCount() int {
	v, ok := m.Headers[HeaderDeliveryCount]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// NotificationID reads the header the feedback pipeline correlates on.
func (m *Message) NotificationID() string {
	return m.Headers[HeaderNotificationID]
}

// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracking provides anonymous usage tracking for the annotation
// service.  Events accumulate per request and are handed to a sink after
// the response is written, keeping uploads off the request path.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultBatchSize = 20

// Event is a single usage event.  The label may be empty and the value
// may be nil but category and action are required.
type Event struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Label    string `json:"label,omitempty"`
	Value    *int64 `json:"value,omitempty"`
}

// NewEvent builds an Event.
func NewEvent(category, action, label string, value *int64) Event {
	return Event{Category: category, Action: action, Label: label, Value: value}
}

// Client uploads events to a collector endpoint in JSON lines batches.
// Use NewClient to obtain a properly initialized instance.
type Client struct {
	instanceID string
	endpoint   string
	batchSize  int
	httpClient *http.Client
}

// NewClient returns a Client that reports events for the given anonymous
// instance ID to endpoint.
func NewClient(endpoint, instanceID string) *Client {
	return &Client{
		instanceID: instanceID,
		endpoint:   endpoint,
		batchSize:  defaultBatchSize,
		httpClient: http.DefaultClient,
	}
}

// Send attempts to upload the provided events to the collector.
func (c *Client) Send(events []Event) error {
	for start := 0; start < len(events); start += c.batchSize {
		end := start + c.batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := c.upload(events[start:end]); err != nil {
			return fmt.Errorf("uploading events: %v", err)
		}
	}
	return nil
}

func (c *Client) upload(events []Event) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, event := range events {
		payload := struct {
			Instance string `json:"instance"`
			Event
		}{c.instanceID, event}
		if err := enc.Encode(&payload); err != nil {
			return fmt.Errorf("encoding event: %v", err)
		}
	}

	request, err := http.NewRequest("POST", c.endpoint+"/events", &body)
	if err != nil {
		return fmt.Errorf("creating request: %v", err)
	}
	request.Header.Set("Content-Type", "application/x-ndjson")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sending request: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status: %v", response.Status)
	}
	return nil
}

type contextKey int

var eventsKey = contextKey(1)

// Middleware returns gin middleware that prepares the request context for
// TrackerFromContext.  When the handler chain completes, sink is invoked
// with any events accumulated during the request.
func Middleware(sink func([]Event)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var events []Event
		ctx := context.WithValue(c.Request.Context(), eventsKey, &events)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		sink(events)
	}
}

// TrackerFromContext returns a function that buffers events for delivery
// to the sink installed by Middleware.  With an unprepared context the
// returned function is a no-op, never nil.
func TrackerFromContext(ctx context.Context) func(Event) {
	if events, ok := ctx.Value(eventsKey).(*[]Event); ok {
		return func(event Event) { *events = append(*events, event) }
	}
	return func(Event) {}
}

// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file defines a reusable Pub/Sub message listener that hands every
// message to a cor Command.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. A Command is attached once the workflows are built.
//  3. `Listen` starts a goroutine that receives messages until ctx is cancelled.
//  4. Each message body is placed in `cor.CtxIn` of a fresh context and the
//     Command runs.
//  5. The message is acknowledged only if the Command recorded no errors;
//     otherwise it is left for redelivery per the subscription's retry policy.

package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Message is the part of a Pub/Sub message the listener needs.
type Message interface {
	Ack()
}

// PubSubListener connects a subscription to a processing command.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
}

// NewPubSubListener creates a listener for subscriptionID.
func NewPubSubListener(pubsubClient *pubsub.Client, subscriptionID string, command cor.Command) *PubSubListener {
	return &PubSubListener{
		client:       pubsubClient,
		subscription: pubsubClient.Subscription(subscriptionID),
		command:      command,
	}
}

// SetCommand attaches the command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving messages in the background.
//
// Inputs:
//   - ctx: Stops the receive loop when cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.ID())
	go func() {
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			HandleMessage(ctx, m.command, msg.ID, msg.Data, msg)
		})
		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}

// HandleMessage runs command over one message body and acknowledges it when
// the command succeeds. It reports whether the message was acknowledged.
func HandleMessage(ctx context.Context, command cor.Command, id string, data []byte, msg Message) bool {
	spanCtx, span := otel.Tracer("message-listener").Start(ctx, "receive-message")
	defer span.End()
	span.SetAttributes(attribute.String("message_id", id), attribute.Int("bytes", len(data)))

	chainCtx := cor.NewBaseContextWith(spanCtx)
	defer chainCtx.Close()
	chainCtx.Add(cor.CtxIn, string(data))

	if command == nil {
		span.SetStatus(codes.Error, "no command attached")
		slog.Error("message received before a command was attached", "message_id", id)
		return false
	}
	command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		span.SetStatus(codes.Ok, "success")
		msg.Ack()
		return true
	}
	span.SetStatus(codes.Error, "failed")
	for key, e := range chainCtx.GetErrors() {
		slog.Error("error executing chain", "message_id", id, "command", key, "error", e)
	}
	return false
}

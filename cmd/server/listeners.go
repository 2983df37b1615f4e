// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
)

// BatchRequestTopic is the topic_subscriptions key of the batch request feed.
const BatchRequestTopic = "BatchRequestTopic"

// SetupListeners attaches the batch workflow to the batch request listener and
// starts it. Messages carry a BatchRequest as JSON; they are acknowledged only
// when the whole workflow succeeds.
func SetupListeners(ctx context.Context, clients *cloud.ServiceClients, batch cor.Command) {
	listener, ok := clients.PubSubListeners[BatchRequestTopic]
	if !ok {
		slog.Warn("no subscription configured, batch requests are only accepted over HTTP", "topic", BatchRequestTopic)
		return
	}
	listener.SetCommand(batch)
	listener.Listen(ctx)
}

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

// Entry point of the Pub/Sub triggered batch workflow.
//
// Logic Flow:
//  1. The command receives the raw message payload (string or []byte) from
//     the context.
//  2. It unmarshals the JSON into a `model.BatchRequest`.
//  3. The request is normalized and validated. An invalid request is a fatal
//     error for the chain: there is nothing to enrich.
//  4. The request is stored under ParamBatchRequest and passed on as output.

package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/cor"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// BatchRequestReader parses a batch request message.
type BatchRequestReader struct {
	cor.BaseCommand
}

// NewBatchRequestReader is the constructor for the BatchRequestReader command.
func NewBatchRequestReader(name string) *BatchRequestReader {
	return &BatchRequestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute parses and validates the request.
func (c *BatchRequestReader) Execute(context cor.Context) {
	var data []byte
	switch in := context.Get(c.GetInputParam()).(type) {
	case string:
		data = []byte(in)
	case []byte:
		data = in
	default:
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("unsupported batch request payload %T", in))
		return
	}

	req := &model.BatchRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal batch request: %w", err))
		return
	}
	if err := req.Validate(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.InfoContext(context.GetContext(), "batch request accepted", "source", req.Source, "clips", len(req.Clips))
	context.Add(ParamBatchRequest, req)
	context.Add(c.GetOutputParam(), req)
}

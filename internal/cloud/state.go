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

// This file holds every client object used to talk to Google Cloud. The
// `ServiceClients` struct is created once at start-up and handed to the
// workflows, commands and HTTP handlers that need it.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at start-up with the loaded Config.
//  2. It creates the Storage, Pub/Sub, GenAI, BigQuery and IAM Credentials clients.
//  3. A Pub/Sub listener is created for every configured subscription; the
//     command is attached later, once the workflows are built.
//  4. Every configured agent model is wrapped in a QuotaAwareGenerativeAIModel.

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is the container for the clients that interact with Google
// Cloud services.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BiqQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient // Signs download URLs.
	PubSubListeners map[string]*PubSubListener        // Keyed by the logical name from the config.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close shuts down every client connection that was opened.
func (c *ServiceClients) Close() error {
	var errs []error
	if c.StorageClient != nil {
		errs = append(errs, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		errs = append(errs, c.PubsubClient.Close())
	}
	if c.BiqQueryClient != nil {
		errs = append(errs, c.BiqQueryClient.Close())
	}
	if c.IAMClient != nil {
		errs = append(errs, c.IAMClient.Close())
	}
	return errors.Join(errs...)
}

// NewAgentModel builds the rate-limited model wrapper for one agent_models entry.
func NewAgentModel(handle ContentGenerator, values VertexAiLLMModel) *QuotaAwareGenerativeAIModel {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.SystemInstructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return NewQuotaAwareModel(config, values.Model, handle, values.RateLimit)
}

// NewCloudServiceClients initializes all required Google Cloud clients from
// the configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: A pointer to the loaded application configuration.
//
// Outputs:
//   - *ServiceClients: The initialized clients.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			_ = cloud.Close()
			cloud = nil
		}
	}()

	if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
		return cloud, fmt.Errorf("storage client: %w", err)
	}
	if cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
		return cloud, fmt.Errorf("pubsub client: %w", err)
	}
	if cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	}); err != nil {
		return cloud, fmt.Errorf("genai client: %w", err)
	}
	if cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
		return cloud, fmt.Errorf("bigquery client: %w", err)
	}
	if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
		return cloud, fmt.Errorf("iam credentials client: %w", err)
	}

	for key, values := range config.TopicSubscriptions {
		cloud.PubSubListeners[key] = NewPubSubListener(cloud.PubsubClient, values.Name, nil)
	}
	for key, values := range config.AgentModels {
		cloud.AgentModels[key] = NewAgentModel(cloud.GenAIClient.Models, values)
		slog.Debug("configured agent model", "key", key, "model", values.Model)
	}
	return cloud, nil
}

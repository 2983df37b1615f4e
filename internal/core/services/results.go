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

// ResultService reads persisted enrichment results back from BigQuery and
// issues time-limited download URLs for the stored artifacts.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/cloud"
	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
	"google.golang.org/api/iterator"
)

// ErrNotFound is returned when no stored result matches a lookup.
var ErrNotFound = errors.New("not found")

// ResultService is the data access layer over the results table and the
// output bucket.
type ResultService struct {
	BigqueryClient *bigquery.Client
	StorageClient  *storage.Client
	IAMClient      *credentials.IamCredentialsClient // Signs URLs without a local key.
	SignerEmail    string                            // Service account that signs download URLs.
	DatasetName    string
	ResultsTable   string
}

// GetFQN returns the table name in `project.dataset.table` form.
func (s *ResultService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.ResultsTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", 1)
}

// FindVariant returns the newest stored variant of clipID for platform.
//
// Outputs:
//   - *model.VariantRecord: The stored variant.
//   - error: ErrNotFound when the clip has no such variant.
func (s *ResultService) FindVariant(ctx context.Context, clipID string, platform string) (*model.VariantRecord, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindVariant, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "clip_id", Value: clipID},
		{Name: "platform", Value: platform},
	}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := &model.VariantRecord{}
	if err := itr.Next(out); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("variant %s/%s: %w", clipID, platform, ErrNotFound)
		}
		return nil, err
	}
	return out, nil
}

// FindJobClips returns every stored row of a job.
func (s *ResultService) FindJobClips(ctx context.Context, jobID string) ([]*model.EnrichmentRecord, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindJobClips, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "job_id", Value: jobID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.EnrichmentRecord, 0)
	for {
		rec := &model.EnrichmentRecord{}
		err := itr.Next(rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GenerateSignedURL creates a V4 GET URL for a gs:// object, signed by the
// IAM Credentials API on behalf of SignerEmail.
func (s *ResultService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	obj, err := cloud.ParseGCSURI(gcsURI)
	if err != nil {
		return "", err
	}
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: s.SignerEmail,
	}
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := s.StorageClient.Bucket(obj.Bucket).SignedURL(obj.Name, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", obj.Bucket, obj.Name, err)
	}
	return u, nil
}

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

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// BucketStore streams files to and from one bucket.
type BucketStore struct {
	client *storage.Client
	bucket string
}

// NewBucketStore creates a store for bucket.
func NewBucketStore(client *storage.Client, bucket string) *BucketStore {
	return &BucketStore{client: client, bucket: bucket}
}

// Bucket returns the bucket name.
func (b *BucketStore) Bucket() string {
	return b.bucket
}

// Upload copies the local file at path into objectName. An empty contentType
// lets Cloud Storage detect it.
func (b *BucketStore) Upload(ctx context.Context, path string, objectName string, contentType string) (GCSObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return GCSObject{}, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()
	return b.UploadReader(ctx, f, objectName, contentType)
}

// UploadReader copies r into objectName.
func (b *BucketStore) UploadReader(ctx context.Context, r io.Reader, objectName string, contentType string) (GCSObject, error) {
	writer := b.client.Bucket(b.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	if written, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return GCSObject{}, fmt.Errorf("failed to copy to gs://%s/%s after %d bytes: %w", b.bucket, objectName, written, err)
	}
	// Close finalizes the object; the upload is not complete until it returns.
	if err := writer.Close(); err != nil {
		return GCSObject{}, fmt.Errorf("failed to finalize gs://%s/%s: %w", b.bucket, objectName, err)
	}
	return GCSObject{Bucket: b.bucket, Name: objectName, MIMEType: contentType}, nil
}

// Delete removes objectName from the bucket.
func (b *BucketStore) Delete(ctx context.Context, objectName string) error {
	return b.client.Bucket(b.bucket).Object(objectName).Delete(ctx)
}

// DownloadObject streams obj into a new file at path, creating parent directories.
func DownloadObject(ctx context.Context, client *storage.Client, obj GCSObject, path string) error {
	reader, err := client.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", obj.URI(), err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to download %s: %w", obj.URI(), err)
	}
	return f.Close()
}

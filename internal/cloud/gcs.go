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

// Models related to Google Cloud Storage objects.
//
// Structs:
//   - GCSObject: A bucket/object pair with its MIME type.
//
// Functions:
//   - ParseGCSURI: Splits a gs:// URI into a GCSObject.

package cloud

import (
	"fmt"
	"strings"
)

// GCSScheme prefixes every object URI handled by the application.
const GCSScheme = "gs://"

// GCSObject is the internal representation of a Google Cloud Storage object.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4").
}

// URI renders the object as gs://bucket/name.
func (o GCSObject) URI() string {
	return GCSScheme + o.Bucket + "/" + o.Name
}

// IsGCSURI reports whether s uses the gs:// scheme.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, GCSScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (GCSObject, error) {
	if !IsGCSURI(uri) {
		return GCSObject{}, fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, name, ok := strings.Cut(strings.TrimPrefix(uri, GCSScheme), "/")
	if !ok || bucket == "" || name == "" {
		return GCSObject{}, fmt.Errorf("uri %q has no bucket or object name", uri)
	}
	return GCSObject{Bucket: bucket, Name: name}, nil
}

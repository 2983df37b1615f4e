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

package services

// BigQuery statements used by ResultService. The table name is formatted in
// with %s; every value is passed as a named query parameter.
const (
	// QryFindVariant returns the newest stored variant of a clip for a platform.
	// `UNNEST(variants)` flattens the repeated variant records into rows.
	QryFindVariant = "SELECT v.platform, v.aspect_ratio, v.quality, v.duration, v.storage_uri, v.thumbnail " +
		"FROM `%s`, UNNEST(variants) AS v " +
		"WHERE clip_id = @clip_id AND v.platform = @platform " +
		"ORDER BY create_date DESC LIMIT 1"

	// QryFindJobClips returns the stored rows of one job in clip order.
	QryFindJobClips = "SELECT * FROM `%s` WHERE job_id = @job_id ORDER BY clip_id"
)

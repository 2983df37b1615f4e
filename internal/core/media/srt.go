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

package media

import (
	"fmt"
	"math"
	"strings"

	"github.com/jaycherian/gcp-go-clip-enrichment/internal/core/model"
)

// FormatTimestamp renders seconds as an SRT timestamp (HH:MM:SS,mmm).
// Negative values clamp to zero.
func FormatTimestamp(secs float64) string {
	if secs < 0 || math.IsNaN(secs) {
		secs = 0
	}
	ms := int64(math.Round(secs * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// BuildSRT writes one cue per word. Words with empty text are dropped and the
// remaining cues are numbered from 1.
func BuildSRT(words []model.Word) string {
	var b strings.Builder
	n := 0
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		n++
		end := w.End
		if end < w.Start {
			end = w.Start
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, FormatTimestamp(w.Start), FormatTimestamp(end), text)
	}
	return b.String()
}

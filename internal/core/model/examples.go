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

// Package model defines the core data structures of the application. This file
// provides example instances used as few-shot samples in generative AI prompts,
// so the model knows the exact JSON shape it must return.
package model

// GetExampleTranscript returns a fully populated Transcript whose JSON form is
// embedded in the transcription prompt.
func GetExampleTranscript() *Transcript {
	return &Transcript{
		Language: "pt",
		Text:     "Olha só o que aconteceu",
		Words: []Word{
			{Text: "Olha", Start: 0.12, End: 0.41},
			{Text: "só", Start: 0.41, End: 0.63},
			{Text: "o", Start: 0.63, End: 0.70},
			{Text: "que", Start: 0.70, End: 0.88},
			{Text: "aconteceu", Start: 0.88, End: 1.52},
		},
	}
}

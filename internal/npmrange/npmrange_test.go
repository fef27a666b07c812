// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package npmrange

import "testing"

func TestMatches(t *testing.T) {
	for _, tc := range []struct {
		rng, version string
		want         bool
	}{
		{"^1.2.3", "1.9.0", true},
		{"^1.2.3", "2.0.0", false},
		{"^1.2.3", "1.2.2", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{">=1.0.0 <2.0.0", "1.5.0", true},
		{">=1.0.0 <2.0.0", "2.0.0", false},
		{"1.2.x", "1.2.7", true},
		{"1.2.x", "1.3.0", false},
		{"1.x", "1.99.0", true},
		{"*", "4.5.6", true},
		{"1.0.0 - 2.0.0", "1.5.0", true},
		{"1.0.0 - 2.0.0", "2.0.1", false},
		{"^1.0.0||^2.0.0", "2.5.0", true},
		{"^0.2.3", "0.2.9", true},
		{"^0.2.3", "0.3.0", false},
		{"^0.0.3", "0.0.3", true},
		{"^0.0.3", "0.0.4", false},
	} {
		if got := Matches(tc.rng, tc.version); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.rng, tc.version, got, tc.want)
		}
	}
}

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

package condaver

import "testing"

func TestCmp(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.0a1", "1.0", -1},
		{"1.0", "1.0.post1", -1},
		{"1!1.0", "2.0", 1},
		{"1.9", "1.10", -1},
	} {
		if got := Cmp(tc.a, tc.b); sign(got) != sign(tc.want) {
			t.Errorf("Cmp(%q, %q) = %d, want sign %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestBuildNumber(t *testing.T) {
	for _, tc := range []struct {
		build string
		want  int
	}{
		{"py310h1234_2", 2},
		{"0", 0},
		{"h5678_10", 10},
	} {
		if got := BuildNumber(tc.build); got != tc.want {
			t.Errorf("BuildNumber(%q) = %d, want %d", tc.build, got, tc.want)
		}
	}
}

func TestParseMatchSpec(t *testing.T) {
	ms, err := ParseMatchSpec("conda-forge::numpy>=1.20=py310h1234_0")
	if err != nil {
		t.Fatalf("ParseMatchSpec() failed: %v", err)
	}
	if ms.Channel != "conda-forge" || ms.Name != "numpy" {
		t.Fatalf("ParseMatchSpec() = %+v, want channel=conda-forge name=numpy", ms)
	}
}

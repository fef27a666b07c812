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

package mavenver

import "testing"

func TestCmp(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.9", "1.10", -1},
		{"1.0-alpha", "1.0", -1},
		{"1.0-alpha", "1.0-beta", -1},
		{"1.0-beta", "1.0-rc", -1},
		{"1.0-rc", "1.0", -1},
		{"1.0", "1.0-sp", -1},
		{"2.0.0", "1.9.9", 1},
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

func TestSort(t *testing.T) {
	versions := []string{"1.10", "1.2", "1.1", "1.0-alpha"}
	Sort(versions)
	want := []string{"1.0-alpha", "1.1", "1.2", "1.10"}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("Sort() = %v, want %v", versions, want)
		}
	}
}

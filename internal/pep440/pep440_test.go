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

package pep440

import "testing"

func TestCmp(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.1", "1.0", 1},
		{"1.0a1", "1.0", -1},
		{"1.0.dev1", "1.0a1", -1},
		{"1.0", "1.0.post1", -1},
		{"1.0.post1", "1.0.post2", -1},
		{"2.0", "1.0", 1},
		{"1!1.0", "2.0", 1}, // epoch dominates
		{"1.0.0", "1.0", 0},
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

func TestSpecifierSet_Matches(t *testing.T) {
	for _, tc := range []struct {
		spec    string
		version string
		want    bool
	}{
		{">=1.0,<2.0", "1.5", true},
		{">=1.0,<2.0", "2.0", false},
		{"==2.31.0", "2.31.0", true},
		{"==2.31.0", "2.31.1", false},
		{"!=1.0", "1.1", true},
		{"~=2.2", "2.3", true},
		{"~=2.2", "3.0", false},
		{"==1.2.*", "1.2.5", true},
		{"==1.2.*", "1.3.0", false},
		{">=1.0,<2.0|>=3.0", "3.5", true},
		{">=1.0,<2.0|>=3.0", "2.5", false},
		{"", "1.0", true},
	} {
		set, err := ParseSpecifierSet(tc.spec)
		if err != nil {
			t.Fatalf("ParseSpecifierSet(%q) failed: %v", tc.spec, err)
		}
		if got := set.Matches(tc.version); got != tc.want {
			t.Errorf("ParseSpecifierSet(%q).Matches(%q) = %v, want %v", tc.spec, tc.version, got, tc.want)
		}
	}
}

func TestSort(t *testing.T) {
	versions := []string{"2.0", "1.0a1", "1.0", "1.0.post1", "1.0.dev1"}
	Sort(versions)
	want := []string{"1.0.dev1", "1.0a1", "1.0", "1.0.post1", "2.0"}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("Sort() = %v, want %v", versions, want)
		}
	}
}

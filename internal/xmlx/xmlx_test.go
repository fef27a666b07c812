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

package xmlx

import (
	"encoding/xml"
	"testing"
)

type license struct {
	Name string `xml:"name"`
}

func TestOneOrMany(t *testing.T) {
	doc := `<project><licenses><license><name>Apache-2.0</name></license><license><name>MIT</name></license></licenses></project>`
	var p struct {
		Licenses OneOrMany[license] `xml:"licenses"`
	}
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if len(p.Licenses.Items) != 2 {
		t.Fatalf("got %d licenses, want 2", len(p.Licenses.Items))
	}
	if p.Licenses.Items[0].Name != "Apache-2.0" || p.Licenses.Items[1].Name != "MIT" {
		t.Fatalf("licenses = %+v", p.Licenses.Items)
	}
}

func TestOneOrMany_Single(t *testing.T) {
	doc := `<project><licenses><license><name>MIT</name></license></licenses></project>`
	var p struct {
		Licenses OneOrMany[license] `xml:"licenses"`
	}
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if len(p.Licenses.Items) != 1 || p.Licenses.Items[0].Name != "MIT" {
		t.Fatalf("licenses = %+v", p.Licenses.Items)
	}
}

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

// Package xmlx holds small helpers for the XML dialects the registry
// adapters parse (Maven POMs, YUM repomd/primary.xml).
package xmlx

import "encoding/xml"

// Text captures an element's text content including a chardata-only body,
// used where a schema says a field is plain text but registries
// occasionally emit it with stray whitespace/CDATA.
type Text struct {
	Value string `xml:",chardata"`
}

// String trims nothing by design -- callers that need trimming call
// strings.TrimSpace themselves, since some fields (e.g. checksum digests)
// are whitespace-sensitive at the byte level only in theory, never in
// practice, and it's cheaper to trim once at the call site than to guess
// here.
func (t Text) String() string { return t.Value }

// OneOrMany decodes the child elements of a container element into a
// slice, whether the container holds one child or many (e.g. Maven's
// <licenses><license>...</license></licenses>). It is bound to the
// container element; a bare child element with no container around it is
// not handled.
type OneOrMany[T any] struct {
	Items []T
}

// UnmarshalXML implements xml.Unmarshaler, decoding every child element of
// start into Items regardless of its name or how many there are.
func (o *OneOrMany[T]) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			var item T
			if err := d.DecodeElement(&item, &se); err != nil {
				return err
			}
			o.Items = append(o.Items, item)
		case xml.EndElement:
			if se == start.End() {
				return nil
			}
		}
	}
}

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

// Package mavenver compares Maven artifact versions, splitting on "." and
// "-" and comparing numeric tokens numerically and qualifier tokens by
// Maven's known-qualifier ordering, per the teacher's semver.Cmp shape.
package mavenver

import (
	"cmp"
	"strconv"
	"strings"
)

// qualifierRank orders known Maven qualifiers; unknown qualifiers sort
// between "rc" and "" (release), which is where Maven's ComparableVersion
// places them (alphabetically, after the known early qualifiers).
var qualifierRank = map[string]int{
	"alpha": -5,
	"beta":  -4,
	"milestone": -3,
	"m":     -3,
	"rc":    -2,
	"cr":    -2,
	"snapshot": -1,
	"":      0,
	"ga":    0,
	"final": 0,
	"release": 0,
	"sp":    1,
}

func rank(qualifier string) int {
	if r, ok := qualifierRank[strings.ToLower(qualifier)]; ok {
		return r
	}
	return -1 // unknown qualifiers sort with/just after rc, before release
}

// token is one dot/dash-separated piece of a version string.
type token struct {
	numeric bool
	num     int64
	str     string
}

func tokenize(v string) []token {
	var tokens []token
	var cur strings.Builder
	var curIsDigit bool
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		if curIsDigit {
			n, _ := strconv.ParseInt(s, 10, 64)
			tokens = append(tokens, token{numeric: true, num: n})
		} else {
			tokens = append(tokens, token{str: strings.ToLower(s)})
		}
		cur.Reset()
	}
	for i, r := range v {
		switch {
		case r == '.' || r == '-':
			flush()
		case r >= '0' && r <= '9':
			if i > 0 && !curIsDigit && cur.Len() > 0 {
				flush()
			}
			curIsDigit = true
			cur.WriteRune(r)
		default:
			if curIsDigit && cur.Len() > 0 {
				flush()
			}
			curIsDigit = false
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Cmp compares two Maven version strings, returning -1, 0, or 1.
func Cmp(a, b string) int {
	at, bt := tokenize(a), tokenize(b)
	n := max(len(at), len(bt))
	for i := 0; i < n; i++ {
		var ta, tb token
		if i < len(at) {
			ta = at[i]
		}
		if i < len(bt) {
			tb = bt[i]
		}
		if c := cmpToken(ta, tb); c != 0 {
			return c
		}
	}
	return 0
}

func cmpToken(a, b token) int {
	switch {
	case a.numeric && b.numeric:
		return cmp.Compare(a.num, b.num)
	case a.numeric && !b.numeric:
		return 1 // a numeric segment outranks a missing/qualifier segment
	case !a.numeric && b.numeric:
		return -1
	default:
		if a.str == b.str {
			return 0
		}
		ra, rb := rank(a.str), rank(b.str)
		if ra != rb {
			return cmp.Compare(ra, rb)
		}
		return strings.Compare(a.str, b.str)
	}
}

// Sort sorts versions ascending by Maven precedence.
func Sort(versions []string) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && Cmp(versions[j-1], versions[j]) > 0; j-- {
			versions[j-1], versions[j] = versions[j], versions[j-1]
		}
	}
}

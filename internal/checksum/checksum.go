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

// Package checksum verifies downloaded artifacts against the digest a
// registry advertised, streaming the hash alongside the write so a large
// artifact is never buffered twice.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, errors.Errorf("unsupported checksum algorithm: %q", a)
	}
}

// ErrMismatch is returned when a verified digest does not match the expected value.
type ErrMismatch struct {
	Algorithm Algorithm
	Want      string
	Got       string
}

func (e *ErrMismatch) Error() string {
	return fmt.Sprintf("%s checksum mismatch: want %s, got %s", e.Algorithm, e.Want, e.Got)
}

// Verify hashes src with the given algorithm and compares it against want
// (hex-encoded, case-insensitive as registries are inconsistent about case).
func Verify(src io.Reader, algo Algorithm, want string) error {
	h, err := algo.newHash()
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, src); err != nil {
		return errors.Wrap(err, "hashing content")
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !equalFoldHex(got, want) {
		return &ErrMismatch{Algorithm: algo, Want: want, Got: got}
	}
	return nil
}

func equalFoldHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'F' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'F' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// WriteVerified streams src to a temp file beside dst, hashing as it goes,
// and atomically renames the temp file to dst only if the digest matches.
// onBytes (if non-nil) is invoked per write as the download progresses; it
// is the caller's responsibility to throttle it (see httpx.StreamPipe).
// A mismatched digest leaves dst untouched and removes the temp file, so a
// caller can retry without risking a partial artifact at the final path.
func WriteVerified(dst string, src io.Reader, algo Algorithm, want string, onBytes func(n int)) (int64, error) {
	h, err := algo.newHash()
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrap(err, "creating destination dir")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".part-*")
	if err != nil {
		return 0, errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	mw := io.MultiWriter(tmp, h)
	n, err := streamCopy(mw, src, onBytes)
	closeErr := tmp.Close()
	if err != nil {
		return n, errors.Wrap(err, "streaming artifact")
	}
	if closeErr != nil {
		return n, errors.Wrap(closeErr, "closing temp file")
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !equalFoldHex(got, want) {
		return n, &ErrMismatch{Algorithm: algo, Want: want, Got: got}
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return n, errors.Wrap(err, "renaming into place")
	}
	return n, nil
}

func streamCopy(dst io.Writer, src io.Reader, onBytes func(n int)) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			if onBytes != nil {
				onBytes(w)
			}
			if werr != nil {
				return total, werr
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

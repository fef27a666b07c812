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

package docker

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/checksum"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/airgapcourier/depssmuggler/pkg/archive"
	digest "github.com/opencontainers/go-digest"
	ispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// Blob is one downloaded, digest-verified content blob (config or layer).
type Blob struct {
	Digest    string
	Size      int64
	LocalPath string
}

// PulledImage is the result of resolving and downloading an image for a
// single target platform, ready for manifest.json synthesis.
type PulledImage struct {
	Ref      Ref
	Manifest *ispec.Manifest
	Config   Blob
	Layers   []Blob
}

// Pull resolves ref's manifest (descending through a manifest list/index
// if present, per target), hands the config and each layer blob to
// download, and returns the assembled image. download is supplied by the
// caller, which stores each blob (and verifies its digest; see
// Source.Download) and returns its local path, so this package does not
// manage its own file layout or verify blobs itself.
func Pull(ctx context.Context, reg Registry, ref Ref, target platform.Target, download func(ctx context.Context, dgst string, size int64, fetch func(ctx context.Context) (io.ReadCloser, error)) (string, error)) (*PulledImage, error) {
	token, err := reg.Token(ctx, ref)
	if err != nil {
		return nil, errors.Wrap(err, "authenticating")
	}
	doc, _, err := reg.Manifest(ctx, ref, token)
	if err != nil {
		return nil, errors.Wrap(err, "fetching manifest")
	}
	if doc.Index != nil {
		entry, ok := SelectPlatform(doc.Index, target)
		if !ok {
			return nil, errors.Errorf("no manifest for platform %s/%s", target.OS, target.Arch)
		}
		childRef := ref
		childRef.Tag = entry.Digest.String()
		doc, _, err = reg.Manifest(ctx, childRef, token)
		if err != nil {
			return nil, errors.Wrap(err, "fetching platform-specific manifest")
		}
	}
	if doc.Manifest == nil {
		return nil, errors.New("registry returned an index where a manifest was expected")
	}
	m := doc.Manifest

	fetchBlob := func(d string) func(ctx context.Context) (io.ReadCloser, error) {
		return func(ctx context.Context) (io.ReadCloser, error) {
			return reg.Blob(ctx, ref, token, d)
		}
	}

	cfgPath, err := download(ctx, m.Config.Digest.String(), m.Config.Size, fetchBlob(m.Config.Digest.String()))
	if err != nil {
		return nil, errors.Wrap(err, "downloading config blob")
	}
	img := &PulledImage{
		Ref:      ref,
		Manifest: m,
		Config:   Blob{Digest: m.Config.Digest.String(), Size: m.Config.Size, LocalPath: cfgPath},
	}
	for _, l := range m.Layers {
		p, derr := download(ctx, l.Digest.String(), l.Size, fetchBlob(l.Digest.String()))
		if derr != nil {
			return nil, errors.Wrapf(derr, "downloading layer %s", l.Digest)
		}
		img.Layers = append(img.Layers, Blob{Digest: l.Digest.String(), Size: l.Size, LocalPath: p})
	}
	return img, nil
}

// dockerManifestEntry is one entry of the docker-load manifest.json array.
type dockerManifestEntry struct {
	Config   string   `json:"Config"`
	RepoTags []string `json:"RepoTags"`
	Layers   []string `json:"Layers"`
}

// sanitizeTag replaces characters that don't survive a filesystem path or a
// "repo:tag" docker-load RepoTags entry cleanly; ':' in digests is the main
// offender since the local filename already uses it as a field separator.
func sanitizeTag(s string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(s)
}

// SaveTarName returns the output filename for img, per spec.md §4.7:
// "<repo>-<sanitized-tag>.tar".
func SaveTarName(ref Ref) string {
	return fmt.Sprintf("%s-%s.tar", strings.ReplaceAll(ref.Repo, "/", "_"), sanitizeTag(ref.Tag))
}

// WriteSaveTar assembles a `docker load`-compatible tar (config JSON, each
// layer blob under its digest-named directory, and a top-level
// manifest.json) and writes it to w, following the same
// stage-in-memory-then-stream-via-TarEntry idiom the teacher's tar
// stabilizer uses.
func WriteSaveTar(w io.Writer, img *PulledImage, readBlob func(localPath string) (io.ReadCloser, error)) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	cfgBlob, err := readAll(readBlob, img.Config.LocalPath)
	if err != nil {
		return errors.Wrap(err, "reading config blob")
	}
	cfgName := img.Config.Digest
	if i := strings.Index(cfgName, ":"); i >= 0 {
		cfgName = cfgName[i+1:] + ".json"
	}
	if err := writeEntry(tw, cfgName, cfgBlob); err != nil {
		return err
	}

	var layerPaths []string
	for i, l := range img.Layers {
		body, rerr := readAll(readBlob, l.LocalPath)
		if rerr != nil {
			return errors.Wrapf(rerr, "reading layer %d", i)
		}
		dir := digest.Digest(l.Digest).Encoded()
		name := dir + "/layer.tar"
		if err := writeEntry(tw, name, body); err != nil {
			return err
		}
		layerPaths = append(layerPaths, name)
	}

	tag := fmt.Sprintf("%s/%s:%s", img.Ref.Registry, img.Ref.Name(), img.Ref.Tag)
	manifest := []dockerManifestEntry{{
		Config:   cfgName,
		RepoTags: []string{tag},
		Layers:   layerPaths,
	}}
	mb, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	return writeEntry(tw, "manifest.json", mb)
}

func readAll(readBlob func(string) (io.ReadCloser, error), path string) ([]byte, error) {
	rc, err := readBlob(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeEntry(tw *tar.Writer, name string, body []byte) error {
	e := archive.TarEntry{
		Header: &tar.Header{
			Name:    name,
			Size:    int64(len(body)),
			Mode:    0644,
			ModTime: time.Unix(0, 0),
		},
		Body: body,
	}
	return e.WriteTo(tw)
}

// VerifyBlob checks a downloaded blob's content against its declared OCI
// digest, in the same streaming-verify style as internal/checksum's
// artifact verification but keyed on a digest.Digest rather than a
// (algorithm, hex) pair.
func VerifyBlob(dgst string, r io.Reader) error {
	d := digest.Digest(dgst)
	if err := d.Validate(); err != nil {
		return errors.Wrap(err, "invalid digest")
	}
	return checksum.Verify(r, checksum.Algorithm(d.Algorithm().String()), d.Encoded())
}

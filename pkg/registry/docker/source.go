// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/pkg/errors"
)

// Source is a registry.Searcher and orchestrator.Fetcher backed by one
// Registry, resolving a single image manifest for a fixed target
// platform. Docker has no dependency graph -- "resolution" here means
// selecting the platform-specific manifest out of an index, not walking
// a tree, so ResolveImage returns one courier.ResolvedPackage rather
// than a courier.GraphResult.
type Source struct {
	Registry Registry
	Target   platform.Target
}

var _ registry.Searcher = &Source{}

// Search treats query as a full image reference and probes it for
// existence, since registries expose no catalog-wide free-text search
// without extra, often-restricted API scopes.
func (s *Source) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	ref := ParseRef(query)
	token, err := s.Registry.Token(ctx, ref)
	if err != nil {
		return nil, nil
	}
	if _, _, err := s.Registry.Manifest(ctx, ref, token); err != nil {
		return nil, nil
	}
	return []courier.ResolvedPackage{{
		PackageRef: courier.PackageRef{Ecosystem: courier.Docker, Name: ref.Name(), Version: ref.Tag},
		Registry:   "docker",
	}}, nil
}

// ResolveImage selects ref's manifest for s.Target and returns it as a
// single resolved package; the actual config/layer blob set is fetched
// lazily inside Download, since there is no cheap way to learn total
// image size without pulling the manifest twice.
func (s *Source) ResolveImage(ctx context.Context, ref Ref) (*courier.ResolvedPackage, error) {
	token, err := s.Registry.Token(ctx, ref)
	if err != nil {
		return nil, errors.Wrap(err, "authenticating")
	}
	if _, _, err := s.Registry.Manifest(ctx, ref, token); err != nil {
		return nil, errors.Wrap(err, "fetching manifest")
	}
	return &courier.ResolvedPackage{
		PackageRef: courier.PackageRef{
			Ecosystem: courier.Docker,
			Name:      ref.Name(),
			Version:   ref.Tag,
			Arch:      s.Target.Arch,
			Platform:  s.Target.OS,
		},
		ResolvedVersion: ref.Tag,
		Registry:        ref.Registry,
		Meta:            map[string]any{"filename": SaveTarName(ref)},
	}, nil
}

// Download pulls every blob referenced by pkg's manifest, digest-verifies
// each against its declared OCI digest, and assembles them into a single
// docker-load-compatible tar held in memory. Blobs are staged to temp
// files during the pull (Pull's download callback contract requires a
// local path) and removed once the tar has been assembled.
func (s *Source) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	ref := Ref{Registry: pkg.Registry, Tag: pkg.ResolvedVersion}
	ref.Namespace, ref.Repo = splitName(pkg.Name)

	var tempFiles []string
	defer func() {
		for _, p := range tempFiles {
			os.Remove(p)
		}
	}()

	stage := func(ctx context.Context, dgst string, size int64, fetch func(ctx context.Context) (io.ReadCloser, error)) (string, error) {
		rc, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		defer rc.Close()
		f, err := os.CreateTemp("", "depssmuggler-blob-*")
		if err != nil {
			return "", err
		}
		tempFiles = append(tempFiles, f.Name())
		defer f.Close()
		if _, err := httpx.StreamPipe(f, rc, func(int) {}); err != nil {
			return "", errors.Wrapf(err, "downloading blob %s", dgst)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		if err := VerifyBlob(dgst, f); err != nil {
			return "", errors.Wrapf(err, "verifying blob %s", dgst)
		}
		return f.Name(), nil
	}

	img, err := Pull(ctx, s.Registry, ref, s.Target, stage)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	readBlob := func(localPath string) (io.ReadCloser, error) { return os.Open(localPath) }
	if err := WriteSaveTar(&buf, img, readBlob); err != nil {
		return nil, errors.Wrap(err, "assembling save tar")
	}
	return io.NopCloser(&buf), nil
}

func splitName(name string) (namespace, repo string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}

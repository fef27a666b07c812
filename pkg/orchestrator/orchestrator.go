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

package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/checksum"
	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/parallel"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/cheggaaa/pb"
	"github.com/pkg/errors"
)

// speedTick matches httpx.StreamPipe's onBytesMinInterval so progress
// events land at the same cadence regardless of which write path a
// download takes.
const speedTick = 300 * time.Millisecond

// Fetcher streams a resolved package's artifact. Every registry adapter's
// Download method (pypi, conda, maven, npm, docker, and osrepo's
// apt/yum/apk facade) satisfies this shape already.
type Fetcher interface {
	Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error)
}

// OutputFormat controls how downloaded artifacts are laid out on disk
// once the download phase completes.
type OutputFormat string

const (
	OutputDir   OutputFormat = "dir"
	OutputZip   OutputFormat = "zip"
	OutputTarGz OutputFormat = "tar.gz"
)

// Options configures a Run.
type Options struct {
	OutputDir      string
	OutputFormat   OutputFormat
	IncludeScripts bool
	Concurrency    int // default parallel.DefaultLimit
}

// ItemResult is one package's outcome in a completed Run.
type ItemResult struct {
	ID    string
	OK    bool
	Error error
}

// Result is the aggregate outcome of a Run, per spec.md §4.10 step 5's
// "{success, items: [{id, ok, error?}]}".
type Result struct {
	Success bool
	Items   []ItemResult
}

// Orchestrator schedules downloads for one run. The zero value is not
// ready for use; construct with New.
type Orchestrator struct {
	Bus *EventBus

	paused    atomic.Bool
	cancelled atomic.Bool
}

// New creates an Orchestrator publishing events to bus (which may be nil
// to discard events).
func New(bus *EventBus) *Orchestrator {
	return &Orchestrator{Bus: bus}
}

// Pause sets the cooperative pause flag; in-flight packages finish their
// current HTTP stream, then the loop blocks before starting the next one.
func (o *Orchestrator) Pause() { o.paused.Store(true) }

// Resume clears the pause flag.
func (o *Orchestrator) Resume() { o.paused.Store(false) }

// Cancel sets the sticky cancel flag. Per spec.md §4.10.4, cancellation
// takes effect after the current in-flight HTTP stream completes or
// errors -- it is never mid-stream.
func (o *Orchestrator) Cancel() { o.cancelled.Store(true) }

// pausePollInterval matches spec.md §5's "~100 ms" cooperative yield.
const pausePollInterval = 100 * time.Millisecond

func (o *Orchestrator) waitWhilePaused(ctx context.Context) error {
	for o.paused.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}
	return nil
}

// Run downloads every package in pkgs via fetchers (keyed by ecosystem),
// writing each to outputDir/packages/, per spec.md §4.10 steps 2-5.
// Iteration order is preserved so a sequential installer can rely on
// dependency order; only the final per-package result ordering is
// guaranteed, not completion order, since downloads run with bounded
// concurrency.
func (o *Orchestrator) Run(ctx context.Context, pkgs []courier.ResolvedPackage, fetchers map[courier.Ecosystem]Fetcher, opts Options) (*Result, error) {
	o.Bus.Emit(StatusEvent{Phase: "downloading", Message: fmt.Sprintf("downloading %d packages", len(pkgs))})

	packagesDir := filepath.Join(opts.OutputDir, "packages")
	if err := os.MkdirAll(packagesDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating output directory")
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = parallel.DefaultLimit
	}
	bar := pb.New(len(pkgs))
	bar.ShowTimeLeft = true
	bar.Start()
	defer bar.Finish()

	results, errs := parallel.MapTolerant(ctx, pkgs, limit, func(ctx context.Context, pkg courier.ResolvedPackage) (ItemResult, error) {
		id := pkg.Key()
		if o.cancelled.Load() {
			return ItemResult{ID: id, OK: false, Error: errors.New("cancelled")}, nil
		}
		if err := o.waitWhilePaused(ctx); err != nil {
			return ItemResult{ID: id, OK: false, Error: err}, nil
		}
		err := o.downloadOne(ctx, packagesDir, pkg, fetchers)
		bar.Increment()
		if err != nil {
			o.Bus.Emit(ProgressEvent{PackageID: id, Status: Failed})
			return ItemResult{ID: id, OK: false, Error: err}, nil
		}
		return ItemResult{ID: id, OK: true}, nil
	})
	for _, e := range errs {
		if e != nil {
			return nil, e // MapTolerant only returns a non-nil per-item err from fn itself, which we never do; kept for interface symmetry.
		}
	}

	success := !o.cancelled.Load()
	for _, r := range results {
		if !r.OK {
			success = false
		}
	}
	if !o.cancelled.Load() {
		o.Bus.Emit(AllCompleteEvent{Success: success, OutputPath: opts.OutputDir})
	}
	return &Result{Success: success, Items: results}, nil
}

// trackProgress returns an onBytes callback suitable for either
// checksum.WriteVerified (called per raw chunk, unthrottled) or
// httpx.StreamPipe (already throttled to speedTick): it accumulates bytes
// itself and only emits a ProgressEvent once speedTick has elapsed, so the
// two write paths produce events at the same cadence.
func (o *Orchestrator) trackProgress(id string, total int64) func(n int) {
	var done, sinceTick int64
	last := time.Now()
	return func(n int) {
		done += int64(n)
		sinceTick += int64(n)
		now := time.Now()
		elapsed := now.Sub(last)
		if elapsed < speedTick && done < total {
			return
		}
		var speed float64
		if s := elapsed.Seconds(); s > 0 {
			speed = float64(sinceTick) / s
		}
		o.Bus.Emit(ProgressEvent{
			PackageID:       id,
			Status:          Downloading,
			Progress:        progressPercent(done, total),
			DownloadedBytes: done,
			TotalBytes:      total,
			SpeedBps:        speed,
		})
		sinceTick = 0
		last = now
	}
}

func progressPercent(done, total int64) int {
	if total <= 0 {
		return -1
	}
	pct := int(done * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (o *Orchestrator) downloadOne(ctx context.Context, packagesDir string, pkg courier.ResolvedPackage, fetchers map[courier.Ecosystem]Fetcher) error {
	fetcher, ok := fetchers[pkg.Ecosystem]
	if !ok {
		return errors.Errorf("no fetcher registered for ecosystem %q", pkg.Ecosystem)
	}
	rc, err := fetcher.Download(ctx, pkg)
	if err != nil {
		return errors.Wrapf(err, "downloading %s", pkg.Key())
	}
	defer rc.Close()

	destPath := filepath.Join(packagesDir, artifactFilename(pkg))
	id := pkg.Key()
	o.Bus.Emit(ProgressEvent{PackageID: id, Status: Downloading, Progress: 0, TotalBytes: pkg.Size})
	onBytes := o.trackProgress(id, pkg.Size)

	var written int64
	if algo, ok := checksumAlgorithm(pkg.Checksum.Type); ok && pkg.Checksum.Hex != "" {
		written, err = checksum.WriteVerified(destPath, rc, algo, pkg.Checksum.Hex, onBytes)
	} else {
		if err = os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return errors.Wrap(err, "creating artifact directory")
		}
		var f *os.File
		f, err = os.Create(destPath)
		if err != nil {
			return errors.Wrap(err, "creating artifact file")
		}
		defer f.Close()
		written, err = httpx.StreamPipe(f, rc, onBytes)
	}
	if err != nil {
		return errors.Wrapf(err, "writing artifact for %s", pkg.Key())
	}
	o.Bus.Emit(ProgressEvent{PackageID: id, Status: Completed, Progress: 100, DownloadedBytes: written, TotalBytes: pkg.Size})
	return nil
}

// artifactFilename returns the path (relative to packagesDir) an
// artifact is written to. Maven's Source records a nested `.m2`-layout
// path under Meta["relPath"] (spec.md §4.5); every other adapter records
// a flat Meta["filename"].
func artifactFilename(pkg courier.ResolvedPackage) string {
	if rp, ok := pkg.Meta["relPath"].(string); ok && rp != "" {
		return rp
	}
	if fn, ok := pkg.Meta["filename"].(string); ok && fn != "" {
		return fn
	}
	base := pkg.Name
	if pkg.ResolvedVersion != "" {
		base += "-" + pkg.ResolvedVersion
	}
	return base
}

func checksumAlgorithm(t string) (checksum.Algorithm, bool) {
	switch t {
	case "sha256":
		return checksum.SHA256, true
	case "sha1":
		return checksum.SHA1, true
	case "md5":
		return checksum.MD5, true
	default:
		return "", false
	}
}

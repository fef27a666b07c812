// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Format selects how Archive packages outputDir.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// Archive walks outputDir and writes it to outputDir+"."+format
// (".zip" or ".tar.gz"), per spec.md §6's "whole outputDir packaged as
// <outputDir>.zip or .tar.gz". File permissions and modification times
// are preserved directly from disk -- unlike pkg/archive's stabilizer
// machinery, a freshly-downloaded bundle has no prior archive to
// normalize against.
func Archive(outputDir string, format Format) (string, error) {
	switch format {
	case FormatZip:
		dst := outputDir + ".zip"
		return dst, writeZip(outputDir, dst)
	case FormatTarGz:
		dst := outputDir + ".tar.gz"
		return dst, writeTarGz(outputDir, dst)
	default:
		return "", errors.Errorf("unsupported bundle archive format %q", format)
	}
}

func writeZip(srcDir, dstPath string) error {
	f, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(err, "creating archive")
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	defer zw.Close()
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
}

func writeTarGz(srcDir, dstPath string) error {
	f, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(err, "creating archive")
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}

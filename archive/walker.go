// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk. The file argument is the zip.File structure for file in archive which
// satisfies match condition. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks all files in the archive located under prefix and having one of
// requested extensions (compared case insensitively, any extension when none
// requested), calling walkFn for each item. Archives with entries containing
// path traversal components ("..") or absolute paths are rejected to prevent
// Zip Slip attacks, since names from the archive become output paths.
func Walk(archive, prefix string, exts []string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	prefix = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(prefix, `\`, "/")), "/")

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !underPrefix(name, prefix) || !hasExt(name, exts) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

// underPrefix matches whole path elements, so "css" selects "css/a.css" and
// "css" itself but not "cssx/a.css".
func underPrefix(name, prefix string) bool {
	if prefix == "" {
		return true
	}
	if name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix+"/")
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := path.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	ioutils "github.com/handiism/halftunes/internal/io"
)

// ErrUnresolvableIdentifier means no local path can be derived from an
// identifier, so it can neither be checked nor downloaded.
var ErrUnresolvableIdentifier = errors.New("unresolvable identifier")

// Resolver maps source identifiers to files under a fixed storage root.
//
// The mapping uses the last path segment of the identifier's URL only, so
// two URLs ending in the same file name share one local path. Callers rely
// on that: a track is "downloaded" as soon as any track with the same file
// name has been.
//
// Example:
//
//	r := store.NewResolver("/home/user/Music/HalfTunes")
//	p, _ := r.Resolve("https://audio.example.com/previews/a.mp3")
//	// p = "/home/user/Music/HalfTunes/a.mp3"
type Resolver struct {
	root string
}

// NewResolver creates a Resolver for the given storage root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the storage root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the local path for id.
func (r *Resolver) Resolve(id string) (string, error) {
	u, err := url.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnresolvableIdentifier, id, err)
	}

	name := path.Base(u.Path)
	if u.Path == "" || name == "/" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q has no final path segment", ErrUnresolvableIdentifier, id)
	}

	return filepath.Join(r.root, name), nil
}

// Exists reports whether the file for id is present. Unresolvable
// identifiers are never present.
func (r *Resolver) Exists(id string) bool {
	p, err := r.Resolve(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Place moves the file at src to the path of id, replacing whatever was
// there. The destination is never appended to or merged.
func (r *Resolver) Place(id, src string) (string, error) {
	dst, err := r.Resolve(id)
	if err != nil {
		return "", err
	}
	if err := ioutils.EnsureDir(r.root); err != nil {
		return "", err
	}
	if err := ioutils.ReplaceFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

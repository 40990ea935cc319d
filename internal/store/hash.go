package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ContentHash is the hex sha256 of a document's bytes. An unchanged hash
// lets the indexer skip the file.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// RulesHash computes a deterministic hash over a set of rule scripts keyed
// by path. Order of the map does not matter.
func RulesHash(scripts map[string][]byte) string {
	paths := make([]string, 0, len(scripts))
	for p := range scripts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "path:%s\n", p)
		h.Write(scripts[p])
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

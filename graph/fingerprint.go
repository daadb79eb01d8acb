package graph

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"

	"github.com/draftware/dwgkit/object"
)

// Fingerprint algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// Fingerprint hashes the document's structural identity into a 16 hex
// character string: the handle set, each handle's type code, every
// resolved reference with its role, and the named roots. Scalar
// payloads (geometry, names, text) are deliberately outside it, so two
// documents fingerprint equal exactly when a round trip is considered
// faithful.
func (d *Document) Fingerprint(alg int) (string, error) {
	var b strings.Builder
	for _, h := range d.Handles() {
		rec := d.objects[h]
		fmt.Fprintf(&b, "%x:%d", uint64(h), rec.Type())
		rec.WalkRefs(func(role object.Role, target *object.Handle) {
			if !target.IsNull() {
				fmt.Fprintf(&b, ",%s=%x", role, uint64(*target))
			}
		})
		b.WriteByte('\n')
	}
	for _, root := range d.Header.Roots() {
		fmt.Fprintf(&b, "root:%s=%x\n", root.Name, uint64(root.Handle))
	}
	return hashLabel(b.String(), alg)
}

// hashLabel generates a 16 hex character digest of the canonical form
// using the selected algorithm.
func hashLabel(label string, alg int) (string, error) {
	switch alg {
	case AlgXXHash3:
		return fmt.Sprintf("%016x", xxh3.HashString(label)), nil
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write([]byte(label))
		return fmt.Sprintf("%016x", h.Sum64()), nil
	case AlgBlake2b:
		h, err := blake2b.New(8, nil)
		if err != nil {
			return "", err
		}
		h.Write([]byte(label))
		return fmt.Sprintf("%016x", h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("unknown fingerprint algorithm %d", alg)
	}
}

package applier

import (
	"fmt"
	"os"

	"github.com/bartekus/patchman/internal/manifest"
)

// GenerationToApplicationOrder converts a manifest's stored order (most
// recent first) to the order patches must be applied in (oldest first).
//
// Any change to how manifests are ordered on disk must be mirrored here.
func GenerationToApplicationOrder(m manifest.Manifest) []manifest.Entry {
	order := make([]manifest.Entry, len(m))
	for i, e := range m {
		order[len(m)-1-i] = e
	}
	return order
}

// ValidatePatches checks that every entry marked for apply has a patch file
// in patchDir. All missing commits are reported at once.
func ValidatePatches(order []manifest.Entry, patchDir string) error {
	return validatePatches(order, patchDir, os.Stat)
}

func validatePatches(order []manifest.Entry, patchDir string, stat func(string) (os.FileInfo, error)) error {
	var missing []string
	for _, e := range order {
		if !e.Apply {
			continue
		}
		info, err := stat(manifest.PatchPath(patchDir, e.Commit))
		if err != nil || info.IsDir() {
			missing = append(missing, e.Commit)
		}
	}
	if len(missing) > 0 {
		return &ApplyError{Kind: KindMissingPatches, Missing: missing}
	}
	return nil
}

// remainingAfter returns the entries that follow commit in application order.
func remainingAfter(order []manifest.Entry, commit string) ([]manifest.Entry, error) {
	for i, e := range order {
		if e.Commit == commit {
			return order[i+1:], nil
		}
	}
	return nil, &ApplyError{
		Kind:   KindResume,
		Commit: commit,
		Detail: fmt.Sprintf("commit %s is not in the manifest", commit),
	}
}

// remainingFrom returns the entries starting at commit in application order.
func remainingFrom(order []manifest.Entry, commit string) ([]manifest.Entry, error) {
	for i, e := range order {
		if e.Commit == commit {
			return order[i:], nil
		}
	}
	return nil, &ApplyError{
		Kind:   KindResume,
		Commit: commit,
		Detail: fmt.Sprintf("commit %s is not in the manifest", commit),
	}
}

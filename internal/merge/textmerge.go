package merge

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/oxen-go/oxen/internal/oxenerr"
)

// mergeText three-way merges text content by diffing base against
// ours and patching that diff onto theirs, the same diffmatchpatch
// approach as a textual three-way merge: if every hunk of the
// base-to-ours patch applies cleanly against theirs, the patched
// result is the merge; otherwise the file as a whole is reported as a
// conflict rather than embedding partial conflict markers into
// committed content. Binary content (either side containing a null
// byte) always conflicts rather than attempting a text diff.
func mergeText(base, ours, theirs []byte) ([]byte, *oxenerr.Conflict) {
	if isBinaryContent(base) || isBinaryContent(ours) || isBinaryContent(theirs) {
		return nil, &oxenerr.Conflict{Reason: "binary content differs on both sides"}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(base), string(ours), false)
	patches := dmp.PatchMake(string(base), diffs)
	merged, applied := dmp.PatchApply(patches, string(theirs))
	for _, ok := range applied {
		if !ok {
			return nil, &oxenerr.Conflict{
				Reason: "text changed incompatibly on both sides",
				Ours:   string(ours),
				Theirs: string(theirs),
			}
		}
	}
	return []byte(merged), nil
}

func isBinaryContent(content []byte) bool {
	for _, b := range content {
		if b == 0 {
			return true
		}
	}
	return false
}

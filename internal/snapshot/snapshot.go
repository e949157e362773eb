// Package snapshot decides how a captured configuration relates to the
// device's version history: its content hash, whether it duplicates the
// canonical ancestor, and how many lines changed since that ancestor.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/ymakhno/confbak/pkg/models"
)

// Result is the evaluation of one sanitized capture. Exactly one of two
// shapes: a duplicate (AncestorID set, no ChangedLines) or new content
// (ChangedLines set when an ancestor with text existed to diff against).
type Result struct {
	Hash         string
	IsDuplicate  bool
	AncestorID   uuid.UUID
	ChangedLines *int
}

// Hash returns the hex-encoded SHA-256 of the sanitized output. Hash equality
// is the whole duplicate check — text is never compared directly.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Evaluate compares the sanitized capture against the canonical ancestor:
// the most recent successful, non-duplicate version, or nil when the device
// has no usable history. The diff only runs when content actually changed;
// identical content short-circuits on the hash.
func Evaluate(text string, ancestor *models.ConfigVersion) Result {
	h := Hash(text)

	if ancestor != nil && ancestor.ConfigHash != nil && *ancestor.ConfigHash == h {
		return Result{Hash: h, IsDuplicate: true, AncestorID: ancestor.ID}
	}

	res := Result{Hash: h}
	if ancestor != nil && ancestor.ConfigText != nil {
		n := ChangedLines(*ancestor.ConfigText, text)
		res.ChangedLines = &n
	}
	return res
}

// ChangedLines counts added plus deleted lines in an LCS line diff between
// two texts. Unchanged (context) lines are excluded.
func ChangedLines(before, after string) int {
	dmp := diffmatchpatch.New()
	// Line mode: each distinct line becomes one rune, so the diff below is
	// line-based and each changed rune is one changed line.
	beforeRunes, afterRunes, _ := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeRunes, afterRunes, false)

	count := 0
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			count += utf8.RuneCountInString(d.Text)
		}
	}
	return count
}

// Package paths implements the naming grammar shared by files and folders.
//
// A name is one or more characters, none of which is a control character
// (0x00-0x1F) or one of < > : ; , ? " * | /. A path is zero or more names
// each followed by "/", then exactly one terminal name.
//
// Parsing happens in two stages: Split breaks the path into segments and
// ValidName checks each segment, so callers learn which segment failed.
package paths

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
)

// Separator delimits path segments.
const Separator = "/"

const forbidden = `<>:;,?"*|/`

// SegmentError reports the offending segment of a rejected path. It unwraps
// to common.ErrInvalidPath.
type SegmentError struct {
	Path   string
	Index  int
	Reason string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s: segment %d of %q %s", common.ErrInvalidPath, e.Index, e.Path, e.Reason)
}

func (e *SegmentError) Unwrap() error {
	return common.ErrInvalidPath
}

// Split breaks p on the separator without validating segments.
// An empty path yields no segments.
func Split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, Separator)
}

// checkName returns a reason when name is not a valid file or folder name.
func checkName(name string) string {
	if name == "" {
		return "is empty"
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Sprintf("contains control character %#02x", r)
		}
		if strings.ContainsRune(forbidden, r) {
			return fmt.Sprintf("contains forbidden character %q", r)
		}
	}
	return ""
}

// ValidName reports whether name is a valid file or folder name.
func ValidName(name string) bool {
	return checkName(name) == ""
}

// Parse splits p into its folder segments and terminal name.
func Parse(p string) (folders []string, leaf string, err error) {
	segments := Split(p)
	if len(segments) == 0 {
		return nil, "", &SegmentError{Path: p, Index: 0, Reason: "is empty"}
	}
	for i, s := range segments {
		if reason := checkName(s); reason != "" {
			return nil, "", &SegmentError{Path: p, Index: i, Reason: reason}
		}
	}
	n := len(segments) - 1
	return segments[:n], segments[n], nil
}

// Join reassembles folder segments and a terminal name.
func Join(folders []string, leaf string) string {
	if len(folders) == 0 {
		return leaf
	}
	return strings.Join(folders, Separator) + Separator + leaf
}

// SafeName encodes s into a filesystem-safe, reversible token.
func SafeName(s string) string {
	return hex.EncodeToString([]byte(s))
}

// UnsafeName decodes a token produced by SafeName.
func UnsafeName(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

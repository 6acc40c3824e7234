// Package services contains server-side business logic: the folder tree,
// the content-addressed block store, the resumable upload state machine and
// the guarded file mutations. Every operation runs inside one transaction
// of a dbx.Database.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/paths"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/folders"
)

// FolderTree resolves folder-name chains against stored folders of a bucket.
type FolderTree struct {
	folders folders.Repository
}

func NewFolderTree(repo folders.Repository) *FolderTree {
	return &FolderTree{folders: repo}
}

// Resolve walks segments from the bucket root and returns the deepest
// existing folder together with the number of segments that matched.
// A nil folder with depth 0 means nothing matched (or segments was empty).
func (t *FolderTree) Resolve(ctx context.Context, bucketID int64, segments []string) (*models.Folder, int, error) {
	var current *models.Folder
	for i, name := range segments {
		next, err := t.folders.FindChild(ctx, bucketID, models.FolderID(current), name)
		if errors.Is(err, common.ErrorNotFound) {
			return current, i, nil
		}
		if err != nil {
			return nil, 0, err
		}
		current = next
	}
	return current, len(segments), nil
}

// Require resolves segments and fails with common.ErrInvalidFolder unless
// the whole chain exists. The root is returned as nil.
func (t *FolderTree) Require(ctx context.Context, bucketID int64, segments []string) (*models.Folder, error) {
	folder, depth, err := t.Resolve(ctx, bucketID, segments)
	if err != nil {
		return nil, err
	}
	if depth != len(segments) {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidFolder, strings.Join(segments[:depth+1], paths.Separator))
	}
	return folder, nil
}

// PathOf returns the slash-joined path of folder; the root is "".
func (t *FolderTree) PathOf(ctx context.Context, folder *models.Folder) (string, error) {
	var names []string
	for f := folder; f != nil; {
		names = append(names, f.FolderName)
		if f.ParentID == nil {
			break
		}
		parent, err := t.folders.Get(ctx, *f.ParentID)
		if err != nil {
			return "", fmt.Errorf("folder %d: %w", *f.ParentID, err)
		}
		f = parent
	}
	slices.Reverse(names)
	return strings.Join(names, paths.Separator), nil
}

// IsBlocked reports whether writes into folder are refused. Only the
// folder's own flag counts; ancestors are not consulted.
func IsBlocked(folder *models.Folder) bool {
	return folder != nil && folder.ReadOnly
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

func TestFolderTree_Resolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mkdir(t, "blueprints", false)
	e.mkdir(t, "blueprints/helmet", false)

	b, err := e.rm.Buckets(nil).FindByName(ctx, project, bucket)
	require.NoError(t, err)
	tree := NewFolderTree(e.rm.Folders(nil))

	f, depth, err := tree.Resolve(ctx, b.ID, []string{"blueprints", "helmet"})
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
	assert.Equal(t, "helmet", f.FolderName)

	f, depth, err = tree.Resolve(ctx, b.ID, []string{"blueprints", "shield", "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Equal(t, "blueprints", f.FolderName)

	f, depth, err = tree.Resolve(ctx, b.ID, []string{"nothing"})
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Nil(t, f)

	f, depth, err = tree.Resolve(ctx, b.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Nil(t, f)
}

func TestFolderTree_Require(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mkdir(t, "blueprints", false)

	b, err := e.rm.Buckets(nil).FindByName(ctx, project, bucket)
	require.NoError(t, err)
	tree := NewFolderTree(e.rm.Folders(nil))

	root, err := tree.Require(ctx, b.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, root)

	_, err = tree.Require(ctx, b.ID, []string{"blueprints", "helmet", "visor"})
	assert.ErrorIs(t, err, common.ErrInvalidFolder)
	assert.ErrorContains(t, err, "blueprints/helmet")
}

func TestFolderTree_PathOf(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mkdir(t, "a", false)
	e.mkdir(t, "a/b", false)
	e.mkdir(t, "a/b/c", false)

	b, err := e.rm.Buckets(nil).FindByName(ctx, project, bucket)
	require.NoError(t, err)
	tree := NewFolderTree(e.rm.Folders(nil))

	c, err := tree.Require(ctx, b.ID, []string{"a", "b", "c"})
	require.NoError(t, err)

	p, err := tree.PathOf(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", p)

	p, err = tree.PathOf(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "", p)
}

func TestIsBlocked(t *testing.T) {
	assert.False(t, IsBlocked(nil))
	assert.False(t, IsBlocked(&models.Folder{}))
	assert.True(t, IsBlocked(&models.Folder{ReadOnly: true}))
}

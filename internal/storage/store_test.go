package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	k, err := CleanKey(" dashboards//acme/a.md ")
	require.NoError(t, err)
	assert.Equal(t, "dashboards/acme/a.md", k)

	k, err = CleanKey("/traces/x.json")
	require.NoError(t, err)
	assert.Equal(t, "traces/x.json", k)

	for _, bad := range []string{"", "  ", "../etc/passwd", "a/../../b", "."} {
		_, err := CleanKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "dashboards/acme/a.md", []byte("# A"), "text/markdown"))
	require.NoError(t, s.Put(ctx, "dashboards/acme/rejected/b.md", []byte("# B"), "text/markdown"))
	require.NoError(t, s.Put(ctx, "dashboards/globex/c.md", []byte("# C"), "text/markdown"))

	raw, err := os.ReadFile(filepath.Join(dir, "dashboards", "acme", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "# A", string(raw))

	got, err := s.Get(ctx, "dashboards/acme/a.md")
	require.NoError(t, err)
	assert.Equal(t, "# A", string(got))

	objs, err := s.List(ctx, "dashboards/acme")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "dashboards/acme/a.md", objs[0].Key)
	assert.Equal(t, "dashboards/acme/rejected/b.md", objs[1].Key)

	objs, err = s.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, objs)

	require.NoError(t, s.Delete(ctx, "dashboards/acme/a.md"))
	_, err = s.Get(ctx, "dashboards/acme/a.md")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "dashboards/acme/a.md"), ErrNotFound)

	assert.Equal(t, filepath.Join(dir, "x", "y.md"), s.URI("x/y.md"))
}

func TestLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "d/acme/old.md", []byte("old"), ""))
	require.NoError(t, s.Put(ctx, "d/acme/new.md", []byte("new"), ""))
	require.NoError(t, s.Put(ctx, "d/acme/new.json", []byte("{}"), ""))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "d", "acme", "old.md"), past, past))

	obj, err := Latest(ctx, s, "d/acme", ".md")
	require.NoError(t, err)
	assert.Equal(t, "d/acme/new.md", obj.Key)

	_, err = Latest(ctx, s, "d/globex", ".md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMove(t *testing.T) {
	s := NewMemoryStore("")
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "p/a.md", []byte("draft"), ""))

	require.NoError(t, Move(ctx, s, "p/a.md", "r/a.md", "text/markdown"))
	assert.Equal(t, []string{"r/a.md"}, s.Keys())
}

func TestFallbackPutSurvivesOneBackend(t *testing.T) {
	primary := NewMemoryStore("primary")
	secondary := NewMemoryStore("secondary")
	var reported []string
	f := &Fallback{Primary: primary, Secondary: secondary, OnError: func(backend, op, key string, err error) {
		reported = append(reported, backend+":"+op)
	}}
	ctx := context.Background()

	primary.FailWrites = true
	require.NoError(t, f.Put(ctx, "a.md", []byte("x"), ""))
	assert.Empty(t, primary.Keys())
	assert.Equal(t, []string{"a.md"}, secondary.Keys())
	assert.Equal(t, []string{"primary:put"}, reported)

	data, err := f.Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	secondary.FailWrites = true
	err = f.Put(ctx, "b.md", []byte("y"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjected)
}

func TestFallbackListUnion(t *testing.T) {
	primary := NewMemoryStore("primary")
	secondary := NewMemoryStore("secondary")
	f := &Fallback{Primary: primary, Secondary: secondary}
	ctx := context.Background()

	require.NoError(t, primary.Put(ctx, "d/a.md", []byte("a"), ""))
	require.NoError(t, secondary.Put(ctx, "d/b.md", []byte("b"), ""))
	require.NoError(t, f.Put(ctx, "d/c.md", []byte("c"), ""))

	objs, err := f.List(ctx, "d")
	require.NoError(t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"d/a.md", "d/b.md", "d/c.md"}, keys)

	primary.FailReads = true
	objs, err = f.List(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestFallbackDelete(t *testing.T) {
	primary := NewMemoryStore("primary")
	secondary := NewMemoryStore("secondary")
	f := &Fallback{Primary: primary, Secondary: secondary}
	ctx := context.Background()

	require.NoError(t, secondary.Put(ctx, "only-secondary.md", []byte("x"), ""))
	require.NoError(t, f.Delete(ctx, "only-secondary.md"))
	assert.Empty(t, secondary.Keys())
	assert.ErrorIs(t, f.Delete(ctx, "only-secondary.md"), ErrNotFound)
}

func TestFallbackWithoutSecondary(t *testing.T) {
	primary := NewMemoryStore("primary")
	f := &Fallback{Primary: primary}
	assert.Equal(t, "primary", f.Name())
	primary.FailWrites = true
	assert.ErrorIs(t, f.Put(context.Background(), "a", []byte("x"), ""), ErrInjected)
}

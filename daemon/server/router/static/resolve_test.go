package static

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/moby/isoserve/daemon/config"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func TestEscapesRoot(t *testing.T) {
	tests := []struct {
		path    string
		escapes bool
	}{
		{path: "/", escapes: false},
		{path: "/index.html", escapes: false},
		{path: "/a/../b", escapes: false},
		{path: "/a/./../b/..", escapes: false},
		{path: "/..", escapes: true},
		{path: "/../etc/passwd", escapes: true},
		{path: "/a/../../b", escapes: true},
		{path: "/a/b/../../..", escapes: true},
		{path: "/..a/b", escapes: false},
		{path: "/a..", escapes: false},
	}
	for _, tc := range tests {
		assert.Check(t, is.Equal(escapesRoot(tc.path), tc.escapes), "path %q", tc.path)
	}
}

// TestResolveStaysInRoot checks that whatever the request path, a path
// that resolves successfully names a file below the root.
func TestResolveStaysInRoot(t *testing.T) {
	root := newTestSite(t)
	opts := defaultOptions(root)
	opts.Dotfiles = config.DotfilesAllow
	sr := NewRouter(opts).(*staticRouter)

	segments := []string{"", ".", "..", "sub", "index.html", "secret.txt", "up.txt", "abs.txt", "rootlink", "etc", "passwd", ".git", "public"}
	rapid.Check(t, func(t *rapid.T) {
		segs := rapid.SliceOfN(rapid.SampledFrom(segments), 0, 10).Draw(t, "segments")
		p := "/" + strings.Join(segs, "/")

		name, _, err := sr.resolve(p)
		if err != nil {
			return
		}
		rel, err := filepath.Rel(root, name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			t.Fatalf("path %q resolved to %q, outside of %q", p, name, root)
		}
	})
}

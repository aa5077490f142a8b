// Package fallback serves best-effort seed content for read requests when the
// backend cannot be reached.
package fallback

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// Provider returns offline content for a request path. ok is false when the
// provider has nothing for the path.
type Provider interface {
	Lookup(ctx context.Context, requestPath string) (body []byte, ok bool)
}

// Disabled never serves content.
type Disabled struct{}

func (Disabled) Lookup(context.Context, string) ([]byte, bool) { return nil, false }

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context, requestPath string) ([]byte, bool)

func (f ProviderFunc) Lookup(ctx context.Context, requestPath string) ([]byte, bool) {
	return f(ctx, requestPath)
}

//go:embed catalog
var catalogFiles embed.FS

// CatalogFS returns the bundled seed catalog rooted at its top directory.
func CatalogFS() fs.FS {
	subFS, err := fs.Sub(catalogFiles, "catalog")
	if err != nil {
		panic("Failed to create catalog sub filesystem: " + err.Error())
	}
	return subFS
}

// Static serves JSON files from a filesystem keyed by request path:
// "/services" reads services.json and "/content/about" reads content/about.json.
// When no file matches, the last segment is looked up by id or slug inside the
// parent collection, so "/services/logo-design" yields one service.
type Static struct {
	fsys fs.FS
}

var _ Provider = (*Static)(nil)

// NewStatic returns a provider over the bundled seed catalog.
func NewStatic() *Static {
	return NewStaticFS(CatalogFS())
}

func NewStaticFS(fsys fs.FS) *Static {
	return &Static{fsys: fsys}
}

func (s *Static) Lookup(_ context.Context, requestPath string) ([]byte, bool) {
	name := normalise(requestPath)
	if name == "" {
		return nil, false
	}

	if data, err := fs.ReadFile(s.fsys, name+".json"); err == nil {
		return data, true
	}

	parent, id := path.Split(name)
	parent = strings.TrimSuffix(parent, "/")
	if parent == "" || id == "" {
		return nil, false
	}
	data, err := fs.ReadFile(s.fsys, parent+".json")
	if err != nil {
		return nil, false
	}
	item, ok := findItem(data, id)
	if !ok {
		return nil, false
	}
	return []byte(fmt.Sprintf(`{"success":true,"data":%s}`, item.Raw)), true
}

// normalise strips the query string and slashes and rejects paths escaping the root.
func normalise(requestPath string) string {
	if i := strings.IndexAny(requestPath, "?#"); i >= 0 {
		requestPath = requestPath[:i]
	}
	cleaned := path.Clean("/" + requestPath)
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "." || !fs.ValidPath(cleaned) {
		return ""
	}
	return cleaned
}

func findItem(collection []byte, id string) (gjson.Result, bool) {
	items := gjson.GetBytes(collection, "data")
	if !items.IsArray() {
		items = gjson.ParseBytes(collection)
	}
	if !items.IsArray() {
		return gjson.Result{}, false
	}

	var found gjson.Result
	items.ForEach(func(_, item gjson.Result) bool {
		for _, field := range []string{"id", "_id", "slug"} {
			if v := item.Get(field); v.Exists() && v.String() == id {
				found = item
				return false
			}
		}
		return true
	})
	return found, found.Exists()
}

package normalisers

import (
	"path"
	"strings"
)

// TitleFromURI derives a human-readable title from a file path or URL.
func TitleFromURI(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	name := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

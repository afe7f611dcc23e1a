package commitmsg

import (
	"github.com/valyala/fasttemplate"
)

// DefaultTemplate is the message used when none is configured.
const DefaultTemplate = "Image version updated to {version}"

const (
	startTag = "{"
	endTag   = "}"
)

// Fields are the values available to a template as {image},
// {version} and {path}.
type Fields struct {
	Image   string
	Version string
	Path    string
}

// Render substitutes f into tpl. Unknown placeholders are left
// untouched. An empty tpl renders DefaultTemplate.
func Render(tpl string, f Fields) string {
	if tpl == "" {
		tpl = DefaultTemplate
	}

	return fasttemplate.ExecuteStringStd(
		tpl,
		startTag,
		endTag,
		map[string]interface{}{
			"image":   f.Image,
			"version": f.Version,
			"path":    f.Path,
		},
	)
}

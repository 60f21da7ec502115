package manifest

import (
	"path/filepath"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// ConfigureLogging applies the [log] table. A relative file is resolved
// against the manifest directory; no file means stderr.
func (m *Manifest) ConfigureLogging() {
	var path *string
	if f := m.Log.File; f != "" {
		if !filepath.IsAbs(f) && m.Dir != "" {
			f = filepath.Join(m.Dir, f)
		}
		path = &f
	}
	commonlog.Configure(m.Log.Verbosity, path)
}

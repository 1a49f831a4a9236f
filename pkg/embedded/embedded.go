// Package embedded provides embedded static assets for the application.
package embedded

import (
	"embed"
)

// Files contains all files embedded in the Go binary:
// - Widget files (widget/) - the viewer page and its bundled assets
//   - index.html - glue page hosting the viewer element
//   - kicanvas.js - the vendored viewer bundle
// - Icon files (icons/) - fallback file-type icon set, extracted to the
//   icon source directory by the registration CLI when none is present
//
// Note: widget/kicanvas.js is copied into pkg/embedded/ during the
// release build; the committed file is a development stand-in.
//
//go:embed widget icons
var Files embed.FS

// Package assets holds the scripts injected into browser tabs.
package assets

import (
	_ "embed"
)

// CaptureScript runs on every new document before page scripts and keeps
// the original input and textarea value setters.
//
//go:embed capture.js
var CaptureScript string

// DescribeFn is called on an element and returns its field facets.
//
//go:embed describe.js
var DescribeFn string

// ApplyFn is called on an element with a list of fill ops.
//
//go:embed apply.js
var ApplyFn string

// BannerFn renders the outcome banner: (id, message, background, border, durationMs).
//
//go:embed banner.js
var BannerFn string

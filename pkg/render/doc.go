// Package render draws certificates.
//
// Rendering happens in two steps. The [scene] subpackage composes a layout,
// its resolved assets and the per-certificate data into a flat list of
// drawing commands in canvas units, with text already measured and
// centered. The [sink] subpackage plays that list onto a device:
//
//   - PDF: one page the size of the canvas, one point per unit. Text is
//     drawn as filled glyph outlines and images as runs of filled cells,
//     so the file embeds no fonts or image streams.
//   - PNG: a raster at a chosen width; every coordinate and size is scaled
//     by width/canvasWidth.
//
// Both outputs come from the same scene, so positions agree between them
// up to rounding.
//
// [scene]: github.com/matzehuels/certforge/pkg/render/scene
// [sink]: github.com/matzehuels/certforge/pkg/render/sink
package render

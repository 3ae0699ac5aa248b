// Package sink draws a composed [scene.Scene] into output formats.
//
// # Formats
//
//   - [RenderPDF]: print-quality vector page, one point per canvas unit
//   - [RenderPNG]: raster preview, scaled to a requested pixel width
//
// Both formats replay the same command list through [play], which maps
// scene coordinates into device space and hands them to a device. The
// PDF device works bottom-up: a point at scene y lands at pageHeight-y and
// a box of height h anchored at scene y lands at pageHeight-y-h. The PNG
// device works top-down and multiplies every coordinate, size and stroke
// width by renderWidth/canvasWidth. Nothing else differs, so every element
// keeps its relative position across formats.
//
// # Text and images in PDF
//
// Text is written as filled glyph outlines taken from the same font
// handles the PNG device rasterizes, so measured widths agree exactly.
// Images are written as runs of filled cells sampled at up to two cells
// per point. QR codes are drawn module by module and stay sharp at any
// zoom.
//
// [scene.Scene]: github.com/matzehuels/certforge/pkg/render/scene.Scene
package sink

// Package layout provides the canonical, default-filled description of a
// certificate's visual elements.
//
// # Overview
//
// Organizers edit certificate designs as loosely-shaped JSON: nested
// objects may be missing, partially filled, or carry values of the wrong
// type. [Resolve] turns that raw configuration into a [Model] in which
// every block, position and style is present. It never fails; anything it
// cannot interpret falls back to the documented default for that field.
//
// # Coordinates
//
// All positions are percentages of the canvas width and height measured
// from the top-left corner. Sizes (font sizes, stroke widths, image sizes)
// are in canvas units. Renderers scale both uniformly by
// renderWidth / Canvas.Width, which keeps the relative placement of every
// element identical across output formats.
//
// # Round trip
//
// [Model.Serialize] returns the fully populated raw form of a model, so
// that
//
//	layout.Resolve(m.Serialize()) == m
//
// for every model produced by Resolve.
package layout

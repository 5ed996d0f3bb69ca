// Package printarea keeps user-placed design objects inside the printable
// region of a product canvas.
//
// A [Session] subscribes to a host canvas's transform events. For every
// moving, scaling or rotating event on an eligible object it resolves the
// current print area and applies the matching operator:
//
//	moving   -> ClampPosition
//	scaling  -> ClampScale, then ClampPosition
//	rotating -> SnapInside (ClampScale, then ClampPosition)
//
// The host's coordinate cache is refreshed after every operator call.
// Operators are plain functions over the [Transformable] capability, so they
// can be driven directly with fakes.
package printarea

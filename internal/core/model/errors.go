// Package model defines the domain types, request validation and error
// taxonomy shared by the extraction pipeline and its transports.
package model

import "errors"

// Callers test these with errors.Is; concrete failures wrap them with the
// offending values.
var (
	ErrInvalidWindow     = errors.New("invalid window")
	ErrResolution        = errors.New("geometry resolution failed")
	ErrUnsupportedMode   = errors.New("unsupported mode")
	ErrConnectionFailure = errors.New("store connection failure")
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrUnknownVariable   = errors.New("unknown variable")
)

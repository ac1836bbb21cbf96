package model

import "errors"

var (
	// ErrData reports a malformed or incomplete price table.
	ErrData = errors.New("invalid price data")
	// ErrNoData reports that the data source returned nothing for the ticker/period.
	ErrNoData = errors.New("no price data")
	// ErrInsufficientData reports a series too short for the requested computation.
	ErrInsufficientData = errors.New("insufficient price data")
	// ErrInvalidInput reports a request outside the supported parameter range.
	ErrInvalidInput = errors.New("invalid input")
)

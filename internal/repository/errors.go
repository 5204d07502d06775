package repository

import "errors"

var (
	// ErrBedNotFound is returned when no bed row exists for a bed number
	ErrBedNotFound = errors.New("bed not found")

	// ErrSettingsNotFound is returned when the settings row has not been seeded
	ErrSettingsNotFound = errors.New("unit settings not found")
)

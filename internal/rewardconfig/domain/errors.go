package domain

import "errors"

var (
	ErrConfigurationMissing = errors.New("configuration_missing")
	ErrInvalidName          = errors.New("invalid_configuration_name")
	ErrInvalidKind          = errors.New("invalid_configuration_kind")
	ErrInvalidValue         = errors.New("invalid_configuration_value")
)

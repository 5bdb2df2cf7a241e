package settings

import "errors"

var (
	// ErrConfigNotFound is returned when a mandatory configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnsupportedFormat is returned when a file format cannot be determined.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrFileParse is returned when a configuration file cannot be parsed.
	ErrFileParse = errors.New("failed to parse configuration file")

	// ErrInvalidLayer is returned for a layer description that cannot be built.
	ErrInvalidLayer = errors.New("invalid configuration layer")

	// ErrCLIParse is returned when command-line arguments cannot be parsed.
	ErrCLIParse = errors.New("failed to parse command-line arguments")
)

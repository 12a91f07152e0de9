package conversion

import "errors"

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrPathNotAllowed    = errors.New("file path not allowed")
	ErrConversionFailed  = errors.New("conversion failed")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrLLMRequest        = errors.New("llm request failed")
	ErrInvalidJSON       = errors.New("invalid JSON")
)

// Package generation holds language model adapters implementing
// interfaces.Generator. Each backend lives in its own subpackage.
package generation

import "github.com/m-mizutani/goerr/v2"

// Parameters shared by every backend
const (
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 2000
)

// ErrEmptyResponse is returned when a model answers without any text
var ErrEmptyResponse = goerr.New("model returned no text")

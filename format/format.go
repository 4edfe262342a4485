// Package format renders analysis results and class facts as JSON,
// tab-separated lines or manifest headers.
package format

import (
	"encoding"

	"github.com/dhamidi/bundlegen/clazz"
)

type Encoder interface {
	encoding.TextMarshaler
	Encode(r *Report) error
}

type ClassEncoder interface {
	encoding.TextMarshaler
	Encode(c *clazz.Clazz) error
}

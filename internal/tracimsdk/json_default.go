//go:build !sonic

package tracimsdk

import (
	"github.com/goccy/go-json"
)

// for imroc/req and the live message decoders
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal

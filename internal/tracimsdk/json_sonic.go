//go:build sonic

package tracimsdk

import (
	"github.com/bytedance/sonic"
)

// for imroc/req and the live message decoders
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal

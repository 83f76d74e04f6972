package model

import (
	"fmt"
	"strings"
)

// Protocol identifies how a layer's temporal metadata is published.
type Protocol string

const (
	ProtocolRaster Protocol = "raster"
	ProtocolVector Protocol = "vector"
	ProtocolWMS    Protocol = "wms"
	ProtocolWMTS   Protocol = "wmts"
	ProtocolCMR    Protocol = "cmr"
)

// Protocols lists every supported protocol
var Protocols = []Protocol{ProtocolRaster, ProtocolVector, ProtocolWMS, ProtocolWMTS, ProtocolCMR}

// ParseProtocol maps a configured protocol name onto the closed set of protocols.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Protocols {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown layer protocol %q", ErrConfiguration, s)
}

// IsCollectionLookup reports whether the protocol resolves its temporal extent
// with a single collection request.
func (p Protocol) IsCollectionLookup() bool {
	switch p {
	case ProtocolRaster, ProtocolWMS, ProtocolWMTS, ProtocolCMR:
		return true
	default:
		return false
	}
}

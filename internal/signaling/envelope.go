// Package signaling holds the negotiation-message side of the relay:
// envelope validation, delivery target resolution and the per-connection
// buffers used to replay a negotiation to a late joiner. Room state and
// delivery belong to the coordinator, which calls into this package
// within a single state step.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/burner-signaling/internal/apperr"
)

// Type is a negotiation message type.
type Type string

const (
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice_candidate"
)

// Media labels which stream a negotiation is for.
type Media string

const (
	MediaDefault Media = ""
	MediaCamera  Media = "camera"
	MediaScreen  Media = "screen"
)

// MaxPayloadBytes bounds a single envelope payload once encoded.
const MaxPayloadBytes = 64 * 1024

// Envelope is one inbound negotiation message. Payload is relayed
// verbatim; it is only decoded to check its shape.
type Envelope struct {
	Type    Type
	Payload any
	Target  string
	Media   Media
}

// Delivery is what the resolved target receives.
type Delivery struct {
	Type           Type   `json:"type"`
	Payload        any    `json:"payload"`
	FromConnection string `json:"fromConnection"`
	FromIdentity   string `json:"fromIdentity"`
	Media          Media  `json:"media,omitempty"`
}

// IsType reports whether s names a negotiation message type.
func IsType(s string) bool {
	switch Type(s) {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// Validate checks that the payload is a well-formed session description
// or ICE candidate for the envelope type.
func (e Envelope) Validate() error {
	switch e.Media {
	case MediaDefault, MediaCamera, MediaScreen:
	default:
		return apperr.Invalid(fmt.Sprintf("unsupported media %q", e.Media))
	}
	if e.Payload == nil {
		return apperr.Invalid(fmt.Sprintf("%s missing payload", e.Type))
	}

	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return apperr.Invalid(fmt.Sprintf("%s payload is not encodable", e.Type))
	}
	if len(raw) > MaxPayloadBytes {
		return apperr.Invalid(fmt.Sprintf("%s payload exceeds %d bytes", e.Type, MaxPayloadBytes))
	}

	switch e.Type {
	case TypeOffer:
		return validateDescription(raw, webrtc.SDPTypeOffer)
	case TypeAnswer:
		return validateDescription(raw, webrtc.SDPTypeAnswer)
	case TypeICECandidate:
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(raw, &c); err != nil {
			return apperr.Invalid("ice_candidate payload is not a candidate")
		}
		if c.Candidate == "" {
			return apperr.Invalid("ice_candidate payload missing candidate")
		}
		return nil
	default:
		return apperr.Invalid(fmt.Sprintf("unsupported signal type %q", e.Type))
	}
}

func validateDescription(raw []byte, want webrtc.SDPType) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return apperr.Invalid(fmt.Sprintf("%s payload is not a session description", want))
	}
	if desc.Type != want {
		return apperr.Invalid(fmt.Sprintf("%s payload has sdp type %q", want, desc.Type))
	}
	if desc.SDP == "" {
		return apperr.Invalid(fmt.Sprintf("%s payload missing sdp", want))
	}
	if _, err := desc.Unmarshal(); err != nil {
		return apperr.Invalid(fmt.Sprintf("%s payload has malformed sdp", want))
	}
	return nil
}

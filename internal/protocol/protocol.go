package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeRun      = "RUN"      // client -> server
	TypeCancel   = "CANCEL"   // client -> server
	TypeAccepted = "ACCEPTED" // server -> client
	TypeSample   = "SAMPLE"   // server -> client
	TypeDone     = "DONE"     // server -> client
	TypeError    = "ERROR"    // server -> client
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

package protocol

import (
	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
)

// RUN (client -> server)
type RunRequest struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	RequestID       string       `json:"request_id,omitempty"`
	Params          calib.Params `json:"params"`
	// Seed nil lets the server pick one; the chosen seed is echoed in ACCEPTED.
	Seed    *uint64 `json:"seed,omitempty"`
	Workers int     `json:"workers,omitempty"`
	// IncludeTable asks the HTTP endpoint to return every row in DONE.
	IncludeTable bool `json:"include_table,omitempty"`
}

// CANCEL (client -> server) aborts the run in progress on the connection.
type CancelMsg struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
}

// ACCEPTED (server -> client)
type AcceptedMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	RequestID       string          `json:"request_id,omitempty"`
	RunID           string          `json:"run_id"`
	Seed            uint64          `json:"seed"`
	RowsExpected    int             `json:"rows_expected"`
	Constants       calib.Constants `json:"constants"`
}

// SAMPLE (server -> client), one per row as the run produces it.
type SampleMsg struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	colony.Sample
}

// DONE (server -> client)
type DoneMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	RequestID       string          `json:"request_id,omitempty"`
	RunID           string          `json:"run_id"`
	Message         string          `json:"message"`
	Digest          string          `json:"digest"`
	Rows            int             `json:"rows"`
	Seed            uint64          `json:"seed"`
	ElapsedMS       int64           `json:"elapsed_ms"`
	Constants       calib.Constants `json:"constants"`
	Table           []colony.Sample `json:"table,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	RunID           string `json:"run_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(requestID, runID string, err error) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		RequestID:       requestID,
		RunID:           runID,
		Code:            CodeFor(err),
		Message:         err.Error(),
	}
}

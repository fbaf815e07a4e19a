package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/run.schema.json
var runSchemaJSON []byte

const runSchemaURL = "https://antventure.ai/schemas/run.schema.json"

var (
	runSchemaOnce sync.Once
	runSchema     *jsonschema.Schema
	runSchemaErr  error
)

// RunSchema returns the compiled RUN schema.
func RunSchema() (*jsonschema.Schema, error) {
	runSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(runSchemaURL, bytes.NewReader(runSchemaJSON)); err != nil {
			runSchemaErr = err
			return
		}
		runSchema, runSchemaErr = c.Compile(runSchemaURL)
	})
	return runSchema, runSchemaErr
}

// RunSchemaJSON is the raw schema, served to clients.
func RunSchemaJSON() []byte { return runSchemaJSON }

// ValidateRunRequest checks a raw RUN frame against the schema and decodes it. Schema
// violations come back as *jsonschema.ValidationError; unknown strategy or policy names
// and liquid errors are left to calibration.
func ValidateRunRequest(raw []byte) (RunRequest, error) {
	var req RunRequest
	s, err := RunSchema()
	if err != nil {
		return req, fmt.Errorf("run schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := s.Validate(doc); err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	if major(req.ProtocolVersion) != major(Version) {
		return req, fmt.Errorf("%w: %q (server speaks %s)", ErrUnsupportedVersion, req.ProtocolVersion, Version)
	}
	return req, nil
}

func major(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			return v[:i]
		}
	}
	return v
}

package profile

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

// launchConfigSchema describes the JSON form of ports.LaunchConfig.
const launchConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "engineType":        {"type": "string"},
    "entryPath":         {"type": "string"},
    "runtimeVersion":    {"type": "string", "pattern": "^$|^v?[0-9]+(\\.[0-9]+)*([-+][0-9A-Za-z.-]+)?$"},
    "args":              {"type": "array", "items": {"type": "string"}},
    "sandboxHome":       {"type": "boolean"},
    "useCompatLayer":    {"type": "boolean"},
    "compatProfileName": {"type": "string"},
    "coverFile":         {"type": "string"},
    "env": {
      "type": "object",
      "propertyNames": {"pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
      "additionalProperties": {"type": "string"}
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(launchConfigSchema)

// Validate checks cfg against the launch config schema.
func Validate(cfg *ports.LaunchConfig) error {
	if cfg == nil {
		return apperrors.New(apperrors.CodeInvalidConfig, "launch config is required")
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "encode launch config", err)
	}
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(b))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "validate launch config", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperrors.New(apperrors.CodeInvalidConfig, "invalid launch config: "+strings.Join(msgs, "; "))
}

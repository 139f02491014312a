package avatarai

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const artifactSchemaURL = "avatarai://artifact.schema.json"

const artifactSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prompt", "image"],
  "properties": {
    "prompt": {"type": "string"},
    "image": {"type": "string", "minLength": 1}
  }
}`

func compileArtifactSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(artifactSchemaURL, strings.NewReader(artifactSchema)); err != nil {
		return nil, fmt.Errorf("add artifact schema: %w", err)
	}
	return compiler.Compile(artifactSchemaURL)
}

// decodeArtifact validates a generic JSON document against the artifact
// schema, then decodes and sniffs the base64 image.
func decodeArtifact(schema *jsonschema.Schema, document interface{}) (Artifact, error) {
	if err := schema.Validate(document); err != nil {
		return Artifact{}, fmt.Errorf("artifact payload: %w", err)
	}

	fields, _ := document.(map[string]interface{})
	prompt, _ := fields["prompt"].(string)
	encoded, _ := fields["image"].(string)

	return imageArtifact(prompt, encoded)
}

func imageArtifact(prompt, encoded string) (Artifact, error) {
	image, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Artifact{}, fmt.Errorf("decode image: %w", err)
	}

	detected := mimetype.Detect(image)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Artifact{}, fmt.Errorf("unexpected image content type %s", detected.String())
	}

	return Artifact{Prompt: prompt, Image: image, ContentType: detected.String()}, nil
}

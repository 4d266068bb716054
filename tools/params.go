package tools

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeParams decodes raw tool parameters into a typed struct using its json tags.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("create parameter decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}
	return nil
}

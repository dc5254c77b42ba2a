package config

import (
	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by configuration structs that fill in their own
// defaults after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes the raw input map into the target pointer c. If c implements
// Setter, ApplyDefaults is called afterwards.
func Decode(input map[string]any, c any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	return nil
}

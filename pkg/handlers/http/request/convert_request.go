package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/mitchellh/mapstructure"
)

var ErrMissingFile = errors.New("no file provided: send 'file' or 'file_path'")

// ConvertRequest holds the non-file form fields of POST /v1/convert.
type ConvertRequest struct {
	FilePath string
	OpenAI   *conversion.LLMConfig
	Settings conversion.Settings
}

// NewConvertRequest decodes the "openai" and "settings" form fields. Both are
// JSON objects encoded as strings; empty means {}. Values are decoded weakly,
// so {"cleanup": "false"} and {"cleanup": 0} both turn cleanup off.
func NewConvertRequest(openai, settings, filePath string) (*ConvertRequest, error) {
	req := &ConvertRequest{
		FilePath: strings.TrimSpace(filePath),
		OpenAI:   &conversion.LLMConfig{},
		Settings: conversion.DefaultSettings(),
	}

	fields, err := decodeObject("openai", openai)
	if err != nil {
		return nil, err
	}
	if err := weakDecode(fields, req.OpenAI); err != nil {
		return nil, fmt.Errorf("%w in 'openai' parameter: %w", conversion.ErrInvalidJSON, err)
	}

	fields, err = decodeObject("settings", settings)
	if err != nil {
		return nil, err
	}
	if err := weakDecode(fields, &req.Settings); err != nil {
		return nil, fmt.Errorf("%w in 'settings' parameter: %w", conversion.ErrInvalidJSON, err)
	}
	return req, nil
}

func decodeObject(name, raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w in '%s' parameter", conversion.ErrInvalidJSON, name)
	}
	return fields, nil
}

func weakDecode(input map[string]interface{}, out interface{}) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

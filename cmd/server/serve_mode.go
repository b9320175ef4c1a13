package main

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidServeMode = errors.New("invalid serve mode")

// ServeMode selects which route families one process answers, so the public widget and page
// traffic can scale apart from the owner dashboard API.
type ServeMode string

const (
	ServeModeMonolith ServeMode = "monolith"
	ServeModePublic   ServeMode = "public"
	ServeModeAPI      ServeMode = "api"
)

func ParseServeMode(rawInput string) (ServeMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return ServeModeMonolith, nil
	}

	mode := ServeMode(normalized)
	switch mode {
	case ServeModeMonolith, ServeModePublic, ServeModeAPI:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServeMode, rawInput)
	}
}

func (mode ServeMode) servesPublic() bool {
	return mode != ServeModeAPI
}

func (mode ServeMode) servesAPI() bool {
	return mode != ServeModePublic
}

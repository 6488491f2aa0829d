// Package validate enforces payload limits on incoming deltas before they
// reach the merge engine, so a bad request never corrupts session history.
package validate

import (
	"encoding/json"
	"fmt"
)

// Payload size limits (in bytes)
const (
	MaxJSONSize  = 1 * 1024 * 1024 // 1MB - maximum request payload
	MaxDeltaSize = 512 * 1024      // 512KB - delta size limit
)

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// DefaultJSONValidator returns a validator with the default 1MB limit
func DefaultJSONValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxJSONSize)
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	size := len(data)
	if size > v.maxSize {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", size, v.maxSize)
	}
	return nil
}

// ValidateJSON validates both size and JSON structure
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	// Check size first (faster than parsing)
	if err := v.ValidateSize(data); err != nil {
		return err
	}

	var js interface{}
	if err := json.Unmarshal(data, &js); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// Delta validates a raw delta payload: size-capped and a JSON object.
func Delta(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("delta is required")
	}
	if len(data) > MaxDeltaSize {
		return fmt.Errorf("delta size %d bytes exceeds maximum %d bytes", len(data), MaxDeltaSize)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("delta must be a JSON object: %w", err)
	}
	return nil
}

// SessionID rejects structurally invalid session identifiers.
// Empty is allowed: an absent id means "allocate a new session".
func SessionID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > 128 {
		return fmt.Errorf("session_id too long")
	}
	for _, r := range id {
		ok := r == '-' || r == '_' ||
			(r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z')
		if !ok {
			return fmt.Errorf("session_id contains invalid characters")
		}
	}
	return nil
}

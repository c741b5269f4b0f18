package chaingate

import "fmt"

// GateError represents a configuration or programmer-error-class failure.
// Expected verification and rate-limit outcomes are never reported as Go
// errors; they are tagged results (VerificationResult, RateLimitResult).
type GateError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidConfig    = "invalid_config"
	ErrCodeUnsupportedChain = "unsupported_chain"
	ErrCodeInvalidAmount    = "invalid_amount"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeRPCUnavailable   = "rpc_unavailable"
)

// NewGateError creates a new gate error
func NewGateError(code, message string, details map[string]interface{}) *GateError {
	return &GateError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

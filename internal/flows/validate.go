package flows

import (
	"github.com/MrEthical07/tokengate/jwt"
)

// ValidateResult returns either the decoded claims or the decode error.
type ValidateResult struct {
	Claims *jwt.Claims
	Err    error
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	DecodeAccess func(string) (*jwt.Claims, error)
}

// RunValidate decodes an access token. Validation is stateless; the session
// store is not consulted.
func RunValidate(token string, deps ValidateDeps) ValidateResult {
	if token == "" {
		return ValidateResult{Err: jwt.ErrMissingToken}
	}
	claims, err := deps.DecodeAccess(token)
	if err != nil {
		return ValidateResult{Err: err}
	}
	return ValidateResult{Claims: claims}
}

package auth

import (
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
)

// OperatorSecretKey gates session issuance (POST /local-api/session).
// When empty the local API runs open, matching a single-operator dev setup.
var OperatorSecretKey string

// LocalAPIKey is an optional static X-API-Key alternative to session tokens.
var LocalAPIKey string

func init() {
	OperatorSecretKey, _ = env.GetEnvString("OPERATOR_SECRET_KEY")
	LocalAPIKey, _ = env.GetEnvString("LOCAL_API_KEY")
}

// Enabled reports whether the local API requires authentication.
func Enabled() bool {
	return OperatorSecretKey != ""
}

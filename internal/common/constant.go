package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// MaxPayloadSize is the default ceiling for sealed content (50 MB).
const MaxPayloadSize = 50 * 1024 * 1024

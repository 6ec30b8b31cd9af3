package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Settlement routing/state.
	ErrSettlementNotFound = "E_SETTLEMENT_NOT_FOUND"
	ErrSettlementBusy     = "E_SETTLEMENT_BUSY"
	ErrExtinct            = "E_EXTINCT"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrLocked        = "E_LOCKED"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrSettlementNotFound: {},
	ErrSettlementBusy:     {},
	ErrExtinct:            {},
	ErrBadRequest:         {},
	ErrNoResource:         {},
	ErrLocked:             {},
	ErrInvalidTarget:      {},
	ErrConflict:           {},
	ErrRateLimit:          {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

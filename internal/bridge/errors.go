package bridge

import "errors"

var (
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyProcessed = errors.New("receipt already processed")
	ErrBridgeStopped    = errors.New("bridge stopped")
	ErrUnknownReceiptId = errors.New("unknown receipt id")
	ErrInvalidRelay     = errors.New("invalid relay")
	ErrInvalidWatcher   = errors.New("invalid watcher")
	ErrNotApproved      = errors.New("receipt not approved")
	ErrTooManyVotes     = errors.New("too many votes")
	ErrTooManyWatchers  = errors.New("too many watchers")
	ErrTooManyRelays    = errors.New("too many relays")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTooSoon          = errors.New("withdrawal delay not passed")
	ErrRateLimited      = errors.New("rate limited")
	ErrTooMuchLocked    = errors.New("too much locked")
	ErrBadOrigin        = errors.New("bad origin")
	ErrUnknownCall      = errors.New("unknown call")
)

var errorNames = map[string]error{
	"AlreadyExists":    ErrAlreadyExists,
	"AlreadyProcessed": ErrAlreadyProcessed,
	"BridgeStopped":    ErrBridgeStopped,
	"UnknownReceiptId": ErrUnknownReceiptId,
	"InvalidRelay":     ErrInvalidRelay,
	"InvalidWatcher":   ErrInvalidWatcher,
	"NotApproved":      ErrNotApproved,
	"TooManyVotes":     ErrTooManyVotes,
	"TooManyWatchers":  ErrTooManyWatchers,
	"TooManyRelays":    ErrTooManyRelays,
	"Unauthorized":     ErrUnauthorized,
	"TooSoon":          ErrTooSoon,
	"RateLimited":      ErrRateLimited,
	"TooMuchLocked":    ErrTooMuchLocked,
	"BadOrigin":        ErrBadOrigin,
	"UnknownCall":      ErrUnknownCall,
}

// ErrorName returns the short error name reported in extrinsic results.
func ErrorName(err error) string {
	for name, e := range errorNames {
		if errors.Is(err, e) {
			return name
		}
	}
	return ""
}

// ErrorByName is the inverse of ErrorName, nil for unknown names.
func ErrorByName(name string) error {
	return errorNames[name]
}

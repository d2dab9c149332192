package fetch

import "errors"

// Sentinel kinds for fetch errors.
var (
	ErrHTTPStatus  = errors.New("unexpected http status")
	ErrNoRows      = errors.New("no leaderboard rows found")
	ErrNoArchive   = errors.New("no archived capture near target date")
	ErrDecode      = errors.New("decode response")
	ErrNoLiveData  = errors.New("no category could be fetched")
	ErrUnsupported = errors.New("unsupported category")
)

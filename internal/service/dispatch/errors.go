package dispatch

import "errors"

// Sentinel errors for the dispatch engine.
var (
	// ErrCampaignInProgress means another campaign send currently holds the
	// dispatch lock.
	ErrCampaignInProgress = errors.New("a campaign send is already in progress")
)

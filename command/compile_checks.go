package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SyncShopifyMessage]   = (*SyncShopifyCommand)(nil)
	_ gocmd.Commander[SyncGoogleAdsMessage] = (*SyncGoogleAdsCommand)(nil)
	_ gocmd.Commander[SweepSyncRunsMessage] = (*SweepSyncRunsCommand)(nil)
)

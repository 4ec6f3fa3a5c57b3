package db

const (
	BRIDGE_ROLE_RELAY   = "relay"
	BRIDGE_ROLE_WATCHER = "watcher"

	RECEIPT_STATUS_VOTING    = "voting"
	RECEIPT_STATUS_APPROVED  = "approved"
	RECEIPT_STATUS_PROCESSED = "processed"

	EXTRINSIC_STATUS_SUCCESS = "success"
	EXTRINSIC_STATUS_FAILED  = "failed"

	SUB_CALL_STATUS_PENDING   = "pending"
	SUB_CALL_STATUS_SUBMITTED = "submitted"
	SUB_CALL_STATUS_FINISHED  = "finished"

	ETH_TX_STATUS_QUEUED  = "queued"
	ETH_TX_STATUS_PENDING = "pending"
	ETH_TX_STATUS_MINED   = "mined"
	ETH_TX_STATUS_FAILED  = "failed"

	NETWORK_NATIVE   = "native"
	NETWORK_ETHEREUM = "ethereum"
)

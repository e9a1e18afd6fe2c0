package models

// TransactionStatus ledger view of one transaction
type TransactionStatus struct {
	Exists      bool   `json:"exists"`
	Confirmed   bool   `json:"confirmed"`
	Success     bool   `json:"success"`
	Slot        uint64 `json:"slot"` // slot or block height
	ErrorReason string `json:"error_reason,omitempty"`
}

// Confirmation answer returned by the confirmation poller
type Confirmation struct {
	TxRef       string `json:"tx_ref"`
	Slot        uint64 `json:"slot"`
	Confirmed   bool   `json:"confirmed"`
	Failed      bool   `json:"failed"`
	ErrorReason string `json:"error_reason,omitempty"`
	Attempts    int    `json:"attempts"`
}

package indexer

// Page is one page of a paginated listing. TotalCount is the remote total
// across all pages.
type Page[T any] struct {
	TotalCount int `json:"total_count"`
	Records    []T `json:"records"`
}

// UTXO is an unspent output as reported by the indexer.
type UTXO struct {
	TxID   string `json:"tx_hash"`
	Vout   uint32 `json:"tx_pos"`
	Height uint64 `json:"height"`
	Value  uint64 `json:"value"`
}

// Balance is an address balance in satoshis.
type Balance struct {
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
}

// FTHolding is one fungible token held by an address.
type FTHolding struct {
	ContractID string `json:"ft_contract_id"`
	Name       string `json:"ft_name"`
	Symbol     string `json:"ft_symbol"`
	Decimals   int    `json:"ft_decimal"`
	Balance    uint64 `json:"ft_balance"`
	UpdatedAt  int64  `json:"ft_updated_at"`
}

// NFT is a non-fungible token.
type NFT struct {
	ContractID      string `json:"nft_contract_id"`
	CollectionID    string `json:"collection_id"`
	CollectionIndex int    `json:"collection_index"`
	Name            string `json:"nft_name"`
	Symbol          string `json:"nft_symbol"`
	Description     string `json:"nft_description"`
	Icon            string `json:"nft_icon"`
	Holder          string `json:"nft_holder"`
	TransferCount   int    `json:"nft_transfer_time_count"`
	CreatedAt       int64  `json:"nft_create_timestamp"`
}

// Collection is an NFT collection.
type Collection struct {
	ID          string `json:"collection_id"`
	Name        string `json:"collection_name"`
	Creator     string `json:"collection_creator"`
	Description string `json:"collection_description"`
	Icon        string `json:"collection_icon"`
	Supply      int    `json:"collection_supply"`
	CreatedAt   int64  `json:"collection_create_timestamp"`
}

// MultiSigWallet is a multi-signature address an account participates in.
type MultiSigWallet struct {
	Address   string   `json:"multi_address"`
	PubKeys   []string `json:"pubkey_list"`
	Threshold int      `json:"threshold"`
}

// HistoryRecord is one entry of an address history feed.
type HistoryRecord struct {
	TxID          string   `json:"txid"`
	ContractID    string   `json:"contract_id,omitempty"`
	From          []string `json:"sender_combine"`
	To            []string `json:"recipient_combine"`
	Amount        int64    `json:"balance_change"`
	Fee           uint64   `json:"fee"`
	Timestamp     int64    `json:"time_stamp"`
	Confirmations int64    `json:"confirmations"`
}

// Signer is one signer's contribution to a multi-signature transaction.
type Signer struct {
	PubKey     string   `json:"pubkey"`
	Signatures []string `json:"sigs"`
}

// MultiSigTx is a multi-signature transaction in the signature exchange.
type MultiSigTx struct {
	UnsignedTxID    string   `json:"unsigned_txid"`
	TxID            string   `json:"txid,omitempty"`
	Status          int      `json:"status"`
	RawTx           string   `json:"tx_raw"`
	PrevScripts     []string `json:"prev_scripts"`
	MultiSigAddress string   `json:"multi_sig_address"`
	FTContractID    string   `json:"ft_contract_id,omitempty"`
	Balance         uint64   `json:"balance"`
	IsSend          bool     `json:"is_send"`
	Signers         []Signer `json:"signers"`
	RequiredPubKeys []string `json:"pubkey_list"`
}

package ledger

import "slices"

// Store kinds.
const (
	KindFTHolding      = "ft"
	KindFTMetadata     = "ftmeta"
	KindNFT            = "nft"
	KindCollection     = "collection"
	KindMultiSigWallet = "multisig"
	KindHistoryTBC     = "history-tbc"
	KindHistoryFT      = "history-ft"
	KindHistoryNFT     = "history-nft"
)

// FTHolding is one fungible token balance of an account. ID is the token
// contract id.
type FTHolding struct {
	Meta
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  int    `json:"decimals"`
	Balance   uint64 `json:"balance"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (h FTHolding) WithState(s State) FTHolding { h.State = s; return h }

// Fresh reports whether remote carries no change relative to h.
func (h FTHolding) Fresh(remote FTHolding) bool {
	return h.Balance == remote.Balance && h.UpdatedAt == remote.UpdatedAt
}

// FTMetadata is the public description of a token contract. Global.
type FTMetadata struct {
	Meta
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func (m FTMetadata) WithState(s State) FTMetadata { m.State = s; return m }

// NFT is a non-fungible token. Global; ID is the NFT contract id.
type NFT struct {
	Meta
	CollectionID    string `json:"collectionId"`
	CollectionIndex int    `json:"collectionIndex"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	Holder          string `json:"holder"`
	TransferCount   int    `json:"transferCount"`
	CreatedAt       int64  `json:"createdAt"`
}

func (n NFT) WithState(s State) NFT { n.State = s; return n }

// Fresh reports whether remote carries no change relative to n.
func (n NFT) Fresh(remote NFT) bool {
	return n.TransferCount == remote.TransferCount && n.Holder == remote.Holder
}

// Collection is an NFT collection. Global; ID is the collection id.
type Collection struct {
	Meta
	Name        string `json:"name"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Supply      int    `json:"supply"`
	CreatedAt   int64  `json:"createdAt"`
}

func (c Collection) WithState(s State) Collection { c.State = s; return c }

// Fresh reports whether remote carries no change relative to c.
func (c Collection) Fresh(remote Collection) bool {
	return c.CreatedAt == remote.CreatedAt && c.Supply == remote.Supply
}

// MultiSigWallet is a multi-signature address an account belongs to. ID is
// the multisig address.
type MultiSigWallet struct {
	Meta
	PubKeys   []string `json:"pubKeys"`
	Threshold int      `json:"threshold"`
}

func (w MultiSigWallet) WithState(s State) MultiSigWallet { w.State = s; return w }

// Fresh reports whether remote carries no change relative to w.
func (w MultiSigWallet) Fresh(remote MultiSigWallet) bool {
	return w.Threshold == remote.Threshold && slices.Equal(w.PubKeys, remote.PubKeys)
}

// HistoryRecord is one entry of an account's tbc, ft or nft history feed.
// ID is the txid, suffixed with the contract id for token feeds.
type HistoryRecord struct {
	Meta
	TxID          string   `json:"txid"`
	ContractID    string   `json:"contractId,omitempty"`
	From          []string `json:"from"`
	To            []string `json:"to"`
	Amount        int64    `json:"amount"`
	Fee           uint64   `json:"fee"`
	Timestamp     int64    `json:"timestamp"`
	Confirmations int64    `json:"confirmations"`
}

func (h HistoryRecord) WithState(s State) HistoryRecord { h.State = s; return h }

// Confirmed reports whether the transaction has been mined.
func (h HistoryRecord) Confirmed() bool { return h.Confirmations > 0 }

// Fresh reports whether remote carries no change relative to h. The raw
// confirmation count grows with every block, so only the move from
// unconfirmed to confirmed counts as a change.
func (h HistoryRecord) Fresh(remote HistoryRecord) bool {
	return h.Timestamp == remote.Timestamp && h.Confirmed() == remote.Confirmed()
}

// HistoryID builds the stable id of a history record.
func HistoryID(txid, contractID string) string {
	if contractID == "" {
		return txid
	}
	return txid + ":" + contractID
}

package indexer

import (
	"context"
	"fmt"
	"net/url"
)

// History feed kinds.
const (
	HistoryTBC = "tbc"
	HistoryFT  = "ft"
	HistoryNFT = "nft"
)

func pagePath(prefix, address string, page, size int) string {
	return fmt.Sprintf("%s/%s/page/%d/size/%d", prefix, url.PathEscape(address), page, size)
}

func getPage[T any](ctx context.Context, c *Client, path string) (*Page[T], error) {
	var p Page[T]
	if err := c.get(ctx, path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FTHoldings lists the fungible tokens held by address. A size of 0 only
// returns the total count.
func (c *Client) FTHoldings(ctx context.Context, address string, page, size int) (*Page[FTHolding], error) {
	return getPage[FTHolding](ctx, c, pagePath("/ft/tokens/held/by/address", address, page, size))
}

// NFTs lists the NFTs held by address.
func (c *Client) NFTs(ctx context.Context, address string, page, size int) (*Page[NFT], error) {
	return getPage[NFT](ctx, c, pagePath("/nft/nfts/held/by/address", address, page, size))
}

// Collections lists the collections created by address.
func (c *Client) Collections(ctx context.Context, address string, page, size int) (*Page[Collection], error) {
	return getPage[Collection](ctx, c, pagePath("/nft/collections/by/address", address, page, size))
}

// MultiSigWallets lists the multi-signature wallets address belongs to.
func (c *Client) MultiSigWallets(ctx context.Context, address string, page, size int) (*Page[MultiSigWallet], error) {
	return getPage[MultiSigWallet](ctx, c, pagePath("/multisig/wallets/by/address", address, page, size))
}

// History lists one history feed of address.
func (c *Client) History(ctx context.Context, kind, address string, page, size int) (*Page[HistoryRecord], error) {
	switch kind {
	case HistoryTBC, HistoryFT, HistoryNFT:
	default:
		return nil, fmt.Errorf("unknown history kind %q", kind)
	}
	return getPage[HistoryRecord](ctx, c, pagePath("/"+kind+"/history/address", address, page, size))
}

// UTXOs returns the unspent outputs of address.
func (c *Client) UTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var out []UTXO
	err := c.get(ctx, "/address/"+url.PathEscape(address)+"/unspent", &out)
	return out, err
}

// ScriptUTXOs returns the unspent outputs locked by a script, identified by
// its reversed sha256 hex.
func (c *Client) ScriptUTXOs(ctx context.Context, scriptHash string) ([]UTXO, error) {
	var out []UTXO
	err := c.get(ctx, "/script/hash/"+url.PathEscape(scriptHash)+"/unspent", &out)
	return out, err
}

// Balance returns the balance of address.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	var b Balance
	if err := c.get(ctx, "/address/"+url.PathEscape(address)+"/balance", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ExchangeRate returns the TBC/USD rate.
func (c *Client) ExchangeRate(ctx context.Context) (float64, error) {
	var out struct {
		Rate float64 `json:"rate"`
	}
	err := c.get(ctx, "/exchangerate", &out)
	return out.Rate, err
}

// RawTx returns the hex of a transaction.
func (c *Client) RawTx(ctx context.Context, txid string) (string, error) {
	var out struct {
		Hex string `json:"hex"`
	}
	if err := c.get(ctx, "/tx/"+url.PathEscape(txid)+"/hex", &out); err != nil {
		return "", err
	}
	if out.Hex == "" {
		return "", fmt.Errorf("indexer returned no hex for %s", txid)
	}
	return out.Hex, nil
}

// CollectionSlots returns the unminted slots of a collection held by owner.
func (c *Client) CollectionSlots(ctx context.Context, collectionID, owner string) ([]UTXO, error) {
	var out []UTXO
	path := "/nft/collection/" + url.PathEscape(collectionID) + "/slots/" + url.PathEscape(owner)
	err := c.get(ctx, path, &out)
	return out, err
}

// NFTUtxo returns the output currently holding an NFT.
func (c *Client) NFTUtxo(ctx context.Context, nftID string) (*UTXO, error) {
	var out UTXO
	if err := c.get(ctx, "/nft/"+url.PathEscape(nftID)+"/utxo", &out); err != nil {
		return nil, err
	}
	if out.TxID == "" {
		return nil, fmt.Errorf("indexer returned no utxo for nft %s", nftID)
	}
	return &out, nil
}

// Broadcast submits a raw transaction and returns its id. The id is empty
// when the indexer accepted the request but the node rejected the
// transaction.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	var out struct {
		Result string `json:"result"`
	}
	err := c.post(ctx, "/broadcast/tx/raw", map[string]string{"txHex": rawHex}, &out)
	return out.Result, err
}

// PublishMultiSig posts a new multi-signature transaction for co-signers.
func (c *Client) PublishMultiSig(ctx context.Context, tx *MultiSigTx) error {
	return c.post(ctx, "/multisig/tx/create", tx, nil)
}

// SubmitSignatures attaches a signer's signatures to a pending transaction.
func (c *Client) SubmitSignatures(ctx context.Context, unsignedTxID string, signer Signer) error {
	body := struct {
		UnsignedTxID string `json:"unsigned_txid"`
		Signer
	}{unsignedTxID, signer}
	return c.post(ctx, "/multisig/tx/sign", body, nil)
}

// FetchMultiSig returns a pending multi-signature transaction.
func (c *Client) FetchMultiSig(ctx context.Context, unsignedTxID string) (*MultiSigTx, error) {
	var out MultiSigTx
	if err := c.get(ctx, "/multisig/tx/"+url.PathEscape(unsignedTxID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingMultiSig lists the transactions waiting on pubkey.
func (c *Client) PendingMultiSig(ctx context.Context, pubkey string) ([]MultiSigTx, error) {
	var out []MultiSigTx
	err := c.get(ctx, "/multisig/pending/"+url.PathEscape(pubkey), &out)
	return out, err
}

// CompleteMultiSig records the broadcast id of a finished transaction.
func (c *Client) CompleteMultiSig(ctx context.Context, unsignedTxID, txid string) error {
	body := map[string]string{"unsigned_txid": unsignedTxID, "txid": txid}
	return c.post(ctx, "/multisig/tx/complete", body, nil)
}

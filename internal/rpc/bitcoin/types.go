package bitcoin

import "github.com/shopspring/decimal"

// WalletTransaction is one entry of listsinceblock.
type WalletTransaction struct {
	Address       string          `json:"address"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Label         string          `json:"label"`
	Vout          uint32          `json:"vout"`
	Confirmations int64           `json:"confirmations"`
	BlockHash     string          `json:"blockhash"`
	BlockHeight   uint64          `json:"blockheight"`
	BlockTime     int64           `json:"blocktime"`
	TxID          string          `json:"txid"`
	Time          int64           `json:"time"`
}

// ListSinceBlockResult carries the wallet transactions and the tip to resume from.
type ListSinceBlockResult struct {
	Transactions []WalletTransaction `json:"transactions"`
	LastBlock    string              `json:"lastblock"`
}

const CategoryReceive = "receive"

// BlockchainInfo represents blockchain information
type BlockchainInfo struct {
	Chain         string `json:"chain"`
	Blocks        uint64 `json:"blocks"`
	Headers       uint64 `json:"headers"`
	BestBlockHash string `json:"bestblockhash"`
}

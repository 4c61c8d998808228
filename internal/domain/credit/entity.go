package credit

import "time"

// TxType defines supported credit transaction types.
type TxType string

const (
	TxTypeRemix    TxType = "remix"
	TxTypePurchase TxType = "purchase"
	TxTypeGrant    TxType = "grant"
)

// TxMeta represents optional metadata attached to a credit transaction.
type TxMeta struct {
	RelatedEntityType string
	RelatedEntityID   string
	Description       string
}

// Balance is a user's current credit balance.
type Balance struct {
	UserID  string `db:"user_id" json:"user_id"`
	Balance int    `db:"balance" json:"balance"`
}

// Transaction is a ledger row. Every balance change writes exactly one.
type Transaction struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	AmountDelta       int       `db:"amount_delta" json:"amount_delta"`
	TxType            string    `db:"tx_type" json:"tx_type"`
	RelatedEntityType *string   `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   *string   `db:"related_entity_id" json:"related_entity_id,omitempty"`
	Description       string    `db:"description" json:"description"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

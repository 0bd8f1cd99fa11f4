package model

const OrderRecordTypeEntry = "entry"
const OrderRecordTypeDca = "dca"
const OrderRecordTypeCut = "cut"
const OrderRecordTypeChildDca = "childDca"
const OrderRecordTypeProfit = "profit"

// OrderRecord is an append-only order journal entry. The journal is capped
// to the most recent 1000 records before every snapshot write.
type OrderRecord struct {
	Type   string       `json:"type"`
	Order  FuturesOrder `json:"order"`
	Change *float64     `json:"change"`
	Profit *float64     `json:"profit"`
}

const OrderJournalLimit = 1000

package entity

// KyBill is a row in the Kentucky legislature bill registry ("HB 1",
// "SB 200", ...).
type KyBill struct {
	BillNumber string
	Title      string
	Session    string
}

// ArticleBill is the junction between an Item and a KyBill it references.
type ArticleBill struct {
	ItemID     string
	BillNumber string
}

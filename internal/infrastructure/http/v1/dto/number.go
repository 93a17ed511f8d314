package dto

// InvoiceNumberResponse is returned by GET /numbers/invoice.
type InvoiceNumberResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

// ItemNumberResponse is returned by GET /numbers/item.
type ItemNumberResponse struct {
	ItemNumber string `json:"itemNumber"`
}

// UserNumberResponse is returned by GET /numbers/user.
type UserNumberResponse struct {
	UserNumber string `json:"userNumber"`
}

// UserNumberQuery selects the role whose prefix is used.
type UserNumberQuery struct {
	Role string `form:"role" binding:"required"`
}

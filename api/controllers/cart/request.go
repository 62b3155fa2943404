package cart

// addItemRequest captures the book/quantity tuple appended to a cart.
type addItemRequest struct {
	BookID   string `json:"book_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// updateItemRequest carries the replacement quantity for a line. Zero removes
// the line.
type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

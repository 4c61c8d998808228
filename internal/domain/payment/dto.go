package payment

// CreatePixRequest is the payload for starting a PIX credit purchase.
type CreatePixRequest struct {
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=1000"`
	CPF      string `json:"cpf" validate:"omitempty,cpf"`
}

// CreatePixResponse returns the order together with the PIX artifacts the
// payer needs to settle it.
type CreatePixResponse struct {
	Order        *Order `json:"order"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

// StatusResponse reports the current status of an order.
type StatusResponse struct {
	ID      string `json:"id"`
	Status  Status `json:"status"`
	Credits int    `json:"credits_purchased"`
}

package invoice

import "time"

// CreateRequest represents a request to issue an invoice.
type CreateRequest struct {
	InvoiceDate  time.Time       `json:"invoice_date" validate:"required"`
	CustomerID   int64           `json:"customer_id" validate:"required,gt=0"`
	DriverID     int64           `json:"driver_id" validate:"required,gt=0"`
	SalesmanID   int64           `json:"salesman_id" validate:"required,gt=0"`
	CashReceived float64         `json:"cash_received" validate:"gte=0"`
	// CreditAmount nil means "not specified": the uncovered remainder is
	// derived. An explicit value, zero included, is kept as sent.
	CreditAmount  *float64        `json:"credit_amount,omitempty"`
	TotalDiscount float64         `json:"total_discount" validate:"gte=0"`
	// LessToMinimum permits line prices under the batch minimum.
	LessToMinimum bool            `json:"less_to_minimum"`
	Lines         []CreateLineReq `json:"lines" validate:"required,min=1,dive"`
}

// CreateLineReq represents one requested line.
type CreateLineReq struct {
	ProductID          int64   `json:"product_id" validate:"required,gt=0"`
	Quantity           float64 `json:"quantity" validate:"required,gt=0"`
	Bonus              float64 `json:"bonus" validate:"gte=0"`
	Price              float64 `json:"price" validate:"required,gt=0"`
	PercentageDiscount float64 `json:"percentage_discount" validate:"gte=0,lte=100"`
	FlatDiscount       float64 `json:"flat_discount" validate:"gte=0"`
}

// UpdatePaymentRequest adjusts the payment fields of an issued invoice.
type UpdatePaymentRequest struct {
	CashReceived float64  `json:"cash_received" validate:"gte=0"`
	CreditAmount *float64 `json:"credit_amount,omitempty"`
}

// ListRequest represents filters for listing invoices.
type ListRequest struct {
	CustomerID *int64         `json:"customer_id,omitempty"`
	DriverID   *int64         `json:"driver_id,omitempty"`
	Status     *PaymentStatus `json:"status,omitempty"`
	DateFrom   *time.Time     `json:"date_from,omitempty"`
	DateTo     *time.Time     `json:"date_to,omitempty"`
	Limit      int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int            `json:"offset" validate:"gte=0"`
}

// ListResponse represents the API response for list.
type ListResponse struct {
	Invoices []WithDetails `json:"invoices"`
	Total    int           `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
	Pages    int           `json:"pages"`
}

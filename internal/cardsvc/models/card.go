package models

import "time"

// CardRecord is the durable entity for one issued press card.
// Field names mirror the persisted cards.json schema.
type CardRecord struct {
	CardId   string  `json:"cardId" bson:"card_id"`
	Wallet   string  `json:"wallet" bson:"wallet"` // empty for print-only cards
	FullName string  `json:"fullName" bson:"full_name"`
	Role     string  `json:"role" bson:"role"`
	Alias    *string `json:"alias" bson:"alias,omitempty"`

	Email           *string `json:"email" bson:"email,omitempty"`
	Phone           *string `json:"phone" bson:"phone,omitempty"`
	DeliveryAddress *string `json:"deliveryAddress" bson:"delivery_address,omitempty"`

	ImageUrl string  `json:"imageUrl" bson:"image_url"`
	PdfUrl   string  `json:"pdfUrl" bson:"pdf_url"`
	TxHash   *string `json:"txHash" bson:"tx_hash,omitempty"`
	TokenId  *int64  `json:"tokenId" bson:"token_id,omitempty"`

	IssueDate      string `json:"issueDate" bson:"issue_date"`           // yyyy-mm-dd
	ExpirationDate string `json:"expirationDate" bson:"expiration_date"` // issue + 1 year, fixed at creation

	Printed   bool `json:"printed" bson:"printed"`
	Shipped   bool `json:"shipped" bson:"shipped"`
	Delivered bool `json:"delivered" bson:"delivered"`
	Revoked   bool `json:"revoked" bson:"revoked"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// CardPatch carries the admin-mutable subset of a card. Nil means
// "leave unchanged".
type CardPatch struct {
	Printed   *bool  `json:"printed,omitempty"`
	Shipped   *bool  `json:"shipped,omitempty"`
	Delivered *bool  `json:"delivered,omitempty"`
	Revoked   *bool  `json:"revoked,omitempty"`
	TokenId   *int64 `json:"tokenId,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p CardPatch) Empty() bool {
	return p.Printed == nil && p.Shipped == nil && p.Delivered == nil &&
		p.Revoked == nil && p.TokenId == nil
}

// Apply merges the patch over a record. UpdatedAt is the store's job.
func (p CardPatch) Apply(c *CardRecord) {
	if p.Printed != nil {
		c.Printed = *p.Printed
	}
	if p.Shipped != nil {
		c.Shipped = *p.Shipped
	}
	if p.Delivered != nil {
		c.Delivered = *p.Delivered
	}
	if p.Revoked != nil {
		c.Revoked = *p.Revoked
	}
	if p.TokenId != nil {
		c.TokenId = p.TokenId
	}
}

package api

import (
	"time"

	"vpn-key-subscription/internal/domain/model"
	"vpn-key-subscription/internal/usecase"
)

type createPaymentRequest struct {
	OwnerID  string       `json:"ownerId"`
	Plan     string       `json:"plan"`
	Period   model.Period `json:"period"`
	Currency string       `json:"currency"`
}

type approveRequest struct {
	Reference string `json:"reference"`
}

type trialRequest struct {
	OwnerID string `json:"ownerId"`
}

type registerOwnerRequest struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username"`
}

type paymentResponse struct {
	PaymentID          string              `json:"paymentId"`
	OwnerID            string              `json:"ownerId"`
	Status             string              `json:"status"`
	Method             string              `json:"method"`
	FiatAmount         int64               `json:"fiatAmount"`
	FiatCurrency       string              `json:"fiatCurrency"`
	Currency           string              `json:"currency"`
	SettlementAddress  string              `json:"settlementAddress"`
	SettlementAmount   float64             `json:"settlementAmount"`
	Plan               string              `json:"plan"`
	PeriodMonths       int                 `json:"periodMonths"`
	ExpiryTime         time.Time           `json:"expiryTime"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	CompletedAt        *time.Time          `json:"completedAt,omitempty"`
	SettlementTxID     *string             `json:"settlementTxId,omitempty"`
	IssuedCredentialID *string             `json:"issuedCredentialId,omitempty"`
	Credential         *credentialResponse `json:"credential,omitempty"`
}

type credentialResponse struct {
	UUID         string    `json:"uuid"`
	OwnerID      string    `json:"ownerId"`
	Plan         string    `json:"plan"`
	PeriodMonths int       `json:"periodMonths"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IsActive     bool      `json:"isActive"`
	IsTrial      bool      `json:"isTrial"`
	Config       string    `json:"config"`
}

type ownerResponse struct {
	ID         string    `json:"id"`
	TelegramID int64     `json:"telegramId"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toPayment(p *model.Payment) *paymentResponse {
	return &paymentResponse{
		PaymentID:          p.ID,
		OwnerID:            p.OwnerID,
		Status:             string(p.Status),
		Method:             string(p.Method),
		FiatAmount:         p.FiatAmount,
		FiatCurrency:       p.FiatCurrency,
		Currency:           p.CurrencyCode,
		SettlementAddress:  p.SettlementAddress,
		SettlementAmount:   p.SettlementAmount,
		Plan:               p.Plan,
		PeriodMonths:       p.PeriodMonths,
		ExpiryTime:         p.ExpiryTime,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		CompletedAt:        p.CompletedAt,
		SettlementTxID:     p.SettlementTxID,
		IssuedCredentialID: p.IssuedCredentialID,
	}
}

func toPaymentView(v *usecase.PaymentView) *paymentResponse {
	out := toPayment(v.Payment)
	if v.Credential != nil {
		out.Credential = toCredential(v.Credential)
	}
	return out
}

func toCredential(c *model.Credential) *credentialResponse {
	return &credentialResponse{
		UUID:         c.UUID,
		OwnerID:      c.OwnerID,
		Plan:         c.Plan,
		PeriodMonths: c.PeriodMonths,
		CreatedAt:    c.CreatedAt,
		ExpiresAt:    c.ExpiresAt,
		IsActive:     c.IsActive,
		IsTrial:      c.IsTrial,
		Config:       c.ConfigBlob,
	}
}

func toOwner(o *model.Owner) *ownerResponse {
	return &ownerResponse{ID: o.ID, TelegramID: o.TelegramID, Username: o.Username, CreatedAt: o.CreatedAt}
}

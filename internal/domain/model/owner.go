package model

import (
	"time"

	"vpn-key-subscription/internal/domain"

	"github.com/google/uuid"
)

// Owner is the directory entry a payment or credential belongs to.
type Owner struct {
	ID         string
	TelegramID int64 // 0 when the owner has no chat to notify
	Username   string
	CreatedAt  time.Time
}

func NewOwner(id string, tgID int64, username string) (*Owner, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Owner{
		ID:         id,
		TelegramID: tgID,
		Username:   username,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

package model

import (
	"errors"
	"strings"
)

var ErrInvalidShipping = errors.New("invalid shipping info")

// 配送先（注文作成時にそのまま送る）
type ShippingInfo struct {
	//宛名
	RecipientName string `json:"recipient_name"`

	//電話番号
	Phone string `json:"phone"`

	//郵便番号
	PostalCode string `json:"postal_code"`

	//住所
	Address string `json:"address"`

	Note string `json:"note,omitempty"`
}

func (s ShippingInfo) Validate() error {
	if strings.TrimSpace(s.RecipientName) == "" {
		return ErrInvalidShipping
	}
	if strings.TrimSpace(s.Phone) == "" {
		return ErrInvalidShipping
	}
	if strings.TrimSpace(s.Address) == "" {
		return ErrInvalidShipping
	}
	return nil
}

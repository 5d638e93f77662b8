package model

// 認証済みの利用者（トークン取得・検証は外部）
type Identity struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"-"`
	// 決済確認などサイドチャネル用の相関トークン（カートの同一性には使わない）
	CorrelationToken string `json:"correlation_token,omitempty"`
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}

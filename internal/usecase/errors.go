package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// 選択と現在のカートが食い違った（利用者に見せる唯一のエラー）
	ErrSelectionDesync  = errors.New("selection desynchronized")
	ErrSelectionMissing = errors.New("no checkout selection")
	ErrEmptySelection   = errors.New("no items selected")
	ErrLoginRequired    = errors.New("login required")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrOrderFailed      = errors.New("order failed")
)

type HTTPError struct {
	Status  int
	Message string
	// 画面表示用の文言と戻し先（任意）
	Detail   string
	Redirect string
	Err      error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errSelectionDesync() error {
	return &HTTPError{
		Status:   http.StatusConflict,
		Message:  "selection desynchronized",
		Detail:   "選択した商品がカートにありません。カートを確認してからもう一度お進みください。",
		Redirect: "/cart",
		Err:      ErrSelectionDesync,
	}
}

func errSelectionMissing() error {
	return &HTTPError{
		Status:   http.StatusConflict,
		Message:  "no checkout selection",
		Detail:   "購入する商品が選択されていません。カートから選び直してください。",
		Redirect: "/cart",
		Err:      ErrSelectionMissing,
	}
}

func errEmptySelection() error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: "no items selected",
		Err:     ErrEmptySelection,
	}
}

func errLoginRequired() error {
	return &HTTPError{
		Status:  http.StatusUnauthorized,
		Message: "login required",
		Err:     ErrLoginRequired,
	}
}

func errPaymentFailed() error {
	return &HTTPError{
		Status:   http.StatusPaymentRequired,
		Message:  "payment failed",
		Detail:   "お支払いが完了しませんでした。選択した商品はそのままです。もう一度お試しください。",
		Redirect: "/checkout",
		Err:      ErrPaymentFailed,
	}
}

// リモートの注文・決済エラーはそのまま画面に渡す
func errRemote(sentinel error, cause error) error {
	he := &HTTPError{
		Status:  http.StatusBadGateway,
		Message: cause.Error(),
		Err:     fmt.Errorf("%w: %w", sentinel, cause),
	}
	var re remoteError
	if errors.As(cause, &re) {
		he.Message = re.RemoteMessage()
		if s := re.RemoteStatus(); s >= 400 && s < 500 {
			he.Status = s
		}
	}
	return he
}

// リモートAPIのエラーが実装する（infra側の型に依存しないため）
type remoteError interface {
	RemoteStatus() int
	RemoteMessage() string
}

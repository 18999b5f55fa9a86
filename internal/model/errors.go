package model

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock         = errors.New("out of stock")
	ErrNotHoldState       = errors.New("reservation not in HOLD state")
	ErrReservationExpired = errors.New("reservation expired")
	ErrNotFound           = errors.New("not found")
	ErrProfileMissing     = errors.New("user has no profile")
	ErrIneligibleUser     = errors.New("user does not meet behavior and distance conditions")
	ErrInvalidPromoWindow = errors.New("invalid promo window")
	ErrInvalidPrice       = errors.New("promo price must be less than base price")
	ErrPromoNotActive     = errors.New("promo not activated")
	ErrHoldLimitReached   = errors.New("too many active holds for this promo")
	ErrConflict           = errors.New("already exists")
)

// not-found 的细分错误，errors.Is(err, ErrNotFound) 仍然成立。
var (
	ErrPromoNotFound        = fmt.Errorf("promo %w", ErrNotFound)
	ErrReservationNotFound  = fmt.Errorf("reservation %w", ErrNotFound)
	ErrStoreProductNotFound = fmt.Errorf("store product %w", ErrNotFound)
	ErrStoreNotFound        = fmt.Errorf("store %w", ErrNotFound)
	ErrProductNotFound      = fmt.Errorf("product %w", ErrNotFound)
)

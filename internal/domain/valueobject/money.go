package valueobject

import (
	"fmt"
	"strings"

	"github.com/ignatzorin/job-settlement/internal/pkg/apperror"
)

const DefaultCurrency = "USD"

// Money хранит сумму в минимальных единицах валюты (центы, копейки).
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "код валюты должен состоять из трёх букв")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewPositiveMoney используется для бюджетов, откликов и платежей.
func NewPositiveMoney(amount int64, currency string) (Money, error) {
	m, err := NewMoney(amount, currency)
	if err != nil {
		return Money{}, err
	}
	if m.Amount == 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return m, nil
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

// LessOrEqual сравнивает суммы одной валюты.
func (m Money) LessOrEqual(other Money) (bool, error) {
	if !m.SameCurrency(other) {
		return false, apperror.Newf(apperror.ErrCodeValidation, "валюты не совпадают: %s и %s", m.Currency, other.Currency)
	}
	return m.Amount <= other.Amount, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}

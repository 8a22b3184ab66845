package valueobject

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// DefaultCurrency используется, когда валюта не указана.
const DefaultCurrency = "USD"

const minorUnitExp = -2

// RatePlaces - максимальное число знаков ставки комиссии, как в журнале.
const RatePlaces = 4

var one = decimal.NewFromInt(1)

// Money хранит сумму в минимальных единицах валюты (центах).
type Money int64

// NewMoneyFromDecimal переводит десятичную сумму в центы.
// Отрицательные суммы и дробные центы не допускаются.
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, apperror.Validation("сумма не может быть отрицательной")
	}
	cents := d.Shift(-minorUnitExp)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, apperror.Validation("сумма не может содержать дробные центы")
	}
	if !cents.BigInt().IsInt64() {
		return 0, apperror.Validation("сумма слишком велика")
	}
	return Money(cents.IntPart()), nil
}

// ParseMoney разбирает строку вида "495.00".
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, apperror.Validation(fmt.Sprintf("некорректная сумма %q", raw))
	}
	return NewMoneyFromDecimal(d)
}

// MustMoney используется в тестах и константах.
func MustMoney(raw string) Money {
	m, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), minorUnitExp)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) IsPositive() bool {
	return m > 0
}

// MarshalJSON отдаёт сумму числом с двумя знаками после точки.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает как число, так и строку.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ValidateRate проверяет, что ставка комиссии лежит в [0, 1) и умещается в RatePlaces знаков.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return apperror.Validation("ставка комиссии должна быть в диапазоне [0, 1)")
	}
	if !rate.Equal(rate.Truncate(RatePlaces)) {
		return apperror.Validation("ставка комиссии допускает не более четырёх знаков после запятой")
	}
	return nil
}

// SplitCommission делит сумму на комиссию площадки и выплату исполнителю.
// Комиссия округляется до цента половиной вверх, net = amount - commission,
// так что net + commission всегда равны amount.
func SplitCommission(amount Money, rate decimal.Decimal) (commission, net Money, err error) {
	if amount < 0 {
		return 0, 0, apperror.Validation("сумма не может быть отрицательной")
	}
	if err := ValidateRate(rate); err != nil {
		return 0, 0, err
	}

	commission = Money(decimal.NewFromInt(int64(amount)).Mul(rate).Round(0).IntPart())
	return commission, amount - commission, nil
}

// BudgetType тип оплаты заказа.
type BudgetType string

const (
	BudgetTypeFixed  BudgetType = "fixed"
	BudgetTypeHourly BudgetType = "hourly"
)

func (t BudgetType) IsValid() bool {
	return t == BudgetTypeFixed || t == BudgetTypeHourly
}

type Budget struct {
	Min  Money
	Max  Money
	Type BudgetType
}

func NewBudget(min, max Money, budgetType BudgetType) (Budget, error) {
	if budgetType == "" {
		budgetType = BudgetTypeFixed
	}
	if !budgetType.IsValid() {
		return Budget{}, apperror.Validation("тип бюджета должен быть fixed или hourly")
	}
	if min < 0 || max < 0 {
		return Budget{}, apperror.Validation("бюджет не может быть отрицательным")
	}
	if min > max {
		return Budget{}, apperror.Validation("минимальный бюджет не может превышать максимальный")
	}
	if !max.IsPositive() {
		return Budget{}, apperror.Validation("максимальный бюджет должен быть больше нуля")
	}
	return Budget{Min: min, Max: max, Type: budgetType}, nil
}

func (b Budget) IsInRange(amount Money) bool {
	return amount >= b.Min && amount <= b.Max
}

func (b Budget) String() string {
	return fmt.Sprintf("%s %s - %s", b.Type, b.Min, b.Max)
}

// Package lineitems calcula as linhas de preço e comissão enviadas na iniciação da transação.
package lineitems

import (
	"github.com/shopspring/decimal"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
)

// Compute monta as linhas do pedido:
//   - line-item/item: preço da variante (priceAsSubunits) ou do anúncio, vezes a quantidade;
//   - line-item/provider-commission: percentual negativo sobre o total, só para o vendedor;
//   - line-item/customer-commission: percentual sobre o total, só para o comprador.
//
// Comissões ausentes ou zeradas não geram linha.
func Compute(listing domain.Listing, order domain.OrderData, v *domain.Variant, commission domain.Commission) ([]domain.LineItem, error) {
	if listing.Price == nil || listing.Price.Currency == "" {
		return nil, apperror.NewValidationError("Anúncio sem preço definido.")
	}
	if order.StockReservationQuantity <= 0 {
		return nil, apperror.NewValidationError("stockReservationQuantity deve ser maior que zero.")
	}

	unit := domain.Money{Amount: listing.Price.Amount, Currency: listing.Price.Currency}
	if v != nil && v.PriceAsSubunits != nil {
		if v.PriceAsSubunits.IsNegative() {
			return nil, apperror.NewValidationError("Preço da variante não pode ser negativo.")
		}
		unit.Amount = v.PriceAsSubunits.Round(0).IntPart()
	}

	quantity := decimal.NewFromInt(int64(order.StockReservationQuantity))
	item := domain.LineItem{
		Code:       domain.LineItemCodeItem,
		UnitPrice:  unit,
		Quantity:   &quantity,
		IncludeFor: []string{domain.IncludeForCustomer, domain.IncludeForProvider},
	}

	total := domain.Money{
		Amount:   decimal.NewFromInt(unit.Amount).Mul(quantity).IntPart(),
		Currency: unit.Currency,
	}

	items := []domain.LineItem{item}

	if rate := commission.ProviderCommission; hasRate(rate) {
		pct := rate.Percentage.Neg()
		items = append(items, domain.LineItem{
			Code:       domain.LineItemCodeProviderCommission,
			UnitPrice:  total,
			Percentage: &pct,
			IncludeFor: []string{domain.IncludeForProvider},
		})
	}

	if rate := commission.CustomerCommission; hasRate(rate) {
		pct := rate.Percentage
		items = append(items, domain.LineItem{
			Code:       domain.LineItemCodeCustomerCommission,
			UnitPrice:  total,
			Percentage: &pct,
			IncludeFor: []string{domain.IncludeForCustomer},
		})
	}

	return items, nil
}

func hasRate(rate *domain.CommissionRate) bool {
	return rate != nil && rate.Percentage.IsPositive()
}

// PayinTotal soma o que o comprador paga (linhas com includeFor customer).
func PayinTotal(items []domain.LineItem) decimal.Decimal {
	return totalFor(items, domain.IncludeForCustomer)
}

// PayoutTotal soma o que o vendedor recebe (linhas com includeFor provider).
func PayoutTotal(items []domain.LineItem) decimal.Decimal {
	return totalFor(items, domain.IncludeForProvider)
}

func totalFor(items []domain.LineItem, party string) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if !includes(it.IncludeFor, party) {
			continue
		}
		sum = sum.Add(LineTotal(it))
	}
	return sum
}

// LineTotal é o valor da linha em subunidades: preço vezes quantidade, ou preço vezes percentual / 100.
func LineTotal(it domain.LineItem) decimal.Decimal {
	price := decimal.NewFromInt(it.UnitPrice.Amount)
	switch {
	case it.Quantity != nil:
		return price.Mul(*it.Quantity)
	case it.Percentage != nil:
		return price.Mul(*it.Percentage).Div(decimal.NewFromInt(100)).Round(0)
	default:
		return price
	}
}

func includes(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

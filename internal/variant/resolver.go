// Package variant resolve qual variante de um anúncio atende a um pedido e
// valida se há estoque suficiente para ele.
package variant

import (
	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
)

// Resolve seleciona a variante do catálogo que atende ao pedido e valida o estoque.
//
// A ordem das verificações é fixa: catálogo vazio, pedido sem atributos,
// variante inexistente, sem estoque e estoque insuficiente. Atributos ausentes
// no pedido funcionam como curinga; a primeira variante compatível, na ordem do
// catálogo, vence.
func Resolve(variants []domain.Variant, order domain.OrderData) (domain.Variant, error) {
	i, err := resolveIndex(variants, order)
	if err != nil {
		return domain.Variant{}, err
	}
	return variants[i], nil
}

func resolveIndex(variants []domain.Variant, order domain.OrderData) (int, error) {
	if len(variants) == 0 {
		return -1, apperror.ErrNoVariantsFound
	}
	if order.Attributes().IsEmpty() {
		return -1, apperror.ErrAttributeRequired
	}

	i := matchIndex(variants, order.Attributes())
	if i < 0 {
		return -1, apperror.ErrVariantNotFound
	}

	if err := ValidateStock(variants[i], order.StockReservationQuantity); err != nil {
		return -1, err
	}
	return i, nil
}

// Match devolve a primeira variante compatível com os atributos do pedido.
// Não valida estoque.
func Match(variants []domain.Variant, order domain.OrderData) (domain.Variant, bool) {
	i := matchIndex(variants, order.Attributes())
	if i < 0 {
		return domain.Variant{}, false
	}
	return variants[i], true
}

func matchIndex(variants []domain.Variant, want domain.Attributes) int {
	for i, v := range variants {
		if matches(v.Attributes, want) {
			return i
		}
	}
	return -1
}

func matches(have, want domain.Attributes) bool {
	return matchAttr(have.Color, want.Color) &&
		matchAttr(have.Size, want.Size) &&
		matchAttr(have.Material, want.Material)
}

func matchAttr(have, want string) bool {
	return want == "" || have == want
}

// ValidateStock verifica se a variante tem estoque para a quantidade pedida.
func ValidateStock(v domain.Variant, quantity int) error {
	if v.Stock <= 0 {
		return apperror.ErrVariantOutOfStock
	}
	if v.Stock < quantity {
		return apperror.ErrVariantStockNotEnough
	}
	return nil
}

// Reserve resolve a variante do pedido e devolve uma cópia do catálogo em que
// apenas ela tem o estoque reduzido pela quantidade pedida. Ordem e ids das
// demais variantes são preservados. O catálogo recebido não é alterado.
func Reserve(variants []domain.Variant, order domain.OrderData) ([]domain.Variant, domain.Variant, error) {
	i, err := resolveIndex(variants, order)
	if err != nil {
		return nil, domain.Variant{}, err
	}

	out := make([]domain.Variant, len(variants))
	copy(out, variants)
	out[i].Stock -= order.StockReservationQuantity
	return out, out[i], nil
}

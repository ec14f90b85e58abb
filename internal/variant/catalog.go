package variant

import (
	"fmt"

	"gostorefront/internal/domain"
	apperror "gostorefront/internal/errors"
)

// ValidateCatalog garante as regras de um catálogo editado pelo vendedor:
// cada variante tem ao menos um atributo, estoque não negativo e a combinação
// de atributos não se repete dentro do anúncio.
func ValidateCatalog(variants []domain.Variant) error {
	seen := make(map[[3]string]int, len(variants))
	ids := make(map[string]struct{}, len(variants))

	for i, v := range variants {
		if v.Attributes.IsEmpty() {
			return apperror.NewValidationError(fmt.Sprintf("Variante %d requer ao menos um atributo (color, size ou material).", i+1))
		}
		if v.Stock < 0 {
			return apperror.NewValidationError(fmt.Sprintf("Variante %d não pode ter estoque negativo.", i+1))
		}
		if j, dup := seen[v.Attributes.Combination()]; dup {
			return apperror.NewValidationError(fmt.Sprintf("Variantes %d e %d possuem a mesma combinação de atributos.", j+1, i+1))
		}
		seen[v.Attributes.Combination()] = i

		if v.ID != "" {
			if _, dup := ids[v.ID]; dup {
				return apperror.NewValidationError(fmt.Sprintf("ID de variante duplicado: %s.", v.ID))
			}
			ids[v.ID] = struct{}{}
		}
	}
	return nil
}

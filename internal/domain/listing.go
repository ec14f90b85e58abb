package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Listing representa um anúncio do marketplace (a Entidade).
// É um agregado externo: buscado a cada requisição e nunca mantido em cache.
type Listing struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId,omitempty"`
	Title      string     `json:"title,omitempty"`
	Price      *Money     `json:"price,omitempty"`
	PublicData PublicData `json:"publicData"`

	// Version é o token de concorrência otimista (OCC).
	// Vale 0 quando o backend não suporta escritas condicionais.
	Version int64 `json:"version"`
}

// Variants retorna o catálogo de variantes do anúncio, na ordem persistida.
func (l Listing) Variants() []Variant {
	return l.PublicData.Variants
}

// Money é um valor monetário em subunidades (centavos) da moeda.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PublicData é o bloco de dados públicos do anúncio.
// Os campos que não conhecemos são preservados em Extra para não serem sobrescritos.
type PublicData struct {
	Variants []Variant
	ShopName string
	Extra    map[string]json.RawMessage
}

const (
	publicDataVariantsKey = "variants"
	publicDataShopNameKey = "shopName"
)

// UnmarshalJSON separa os campos conhecidos e guarda o restante em Extra.
func (p *PublicData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = PublicData{}
	if v, ok := raw[publicDataVariantsKey]; ok {
		if err := json.Unmarshal(v, &p.Variants); err != nil {
			return err
		}
		delete(raw, publicDataVariantsKey)
	}
	if v, ok := raw[publicDataShopNameKey]; ok {
		if err := json.Unmarshal(v, &p.ShopName); err != nil {
			return err
		}
		delete(raw, publicDataShopNameKey)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

// MarshalJSON recompõe o objeto publicData completo.
func (p PublicData) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.Variants != nil {
		out[publicDataVariantsKey] = p.Variants
	}
	if p.ShopName != "" {
		out[publicDataShopNameKey] = p.ShopName
	}
	return json.Marshal(out)
}

// Variant é uma configuração comprável de um anúncio (e.g., camiseta preta M de algodão).
// O controle de estoque é feito a nível de Variant.
//
// As chaves que não conhecemos ficam em Extra e são gravadas de volta sem alteração,
// assim uma reserva só muda o estoque da variante comprada.
type Variant struct {
	ID              string
	Attributes      Attributes
	Stock           int
	SKU             string
	PriceAsSubunits *decimal.Decimal
	ImageID         string
	Extra           map[string]json.RawMessage
}

// variantJSON é a forma conhecida da variante no publicData.
type variantJSON struct {
	ID              string           `json:"id"`
	Attributes      Attributes       `json:"attributes"`
	Stock           int              `json:"stock"`
	SKU             string           `json:"sku,omitempty"`
	PriceAsSubunits *decimal.Decimal `json:"priceAsSubunits,omitempty"`
	ImageID         string           `json:"imageId,omitempty"`
}

var variantKeys = []string{"id", "attributes", "stock", "sku", "priceAsSubunits", "imageId"}

func (v *Variant) UnmarshalJSON(data []byte) error {
	var known variantJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := unknownKeys(data, variantKeys)
	if err != nil {
		return err
	}
	*v = Variant{
		ID:              known.ID,
		Attributes:      known.Attributes,
		Stock:           known.Stock,
		SKU:             known.SKU,
		PriceAsSubunits: known.PriceAsSubunits,
		ImageID:         known.ImageID,
		Extra:           extra,
	}
	return nil
}

// MarshalJSON grava o preço como número JSON, no mesmo formato em que é lido.
func (v Variant) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(v.Extra)+len(variantKeys))
	for k, raw := range v.Extra {
		out[k] = raw
	}
	out["id"] = v.ID
	out["attributes"] = v.Attributes
	out["stock"] = v.Stock
	if v.SKU != "" {
		out["sku"] = v.SKU
	}
	if v.PriceAsSubunits != nil {
		out["priceAsSubunits"] = DecimalNumber(*v.PriceAsSubunits)
	}
	if v.ImageID != "" {
		out["imageId"] = v.ImageID
	}
	return json.Marshal(out)
}

// Attributes são os atributos que identificam uma variante dentro do anúncio.
// A combinação de cor, tamanho e material é única por anúncio; outros atributos
// ficam em Extra e não participam da resolução.
type Attributes struct {
	Color    string
	Size     string
	Material string
	Extra    map[string]json.RawMessage
}

type attributesJSON struct {
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Material string `json:"material,omitempty"`
}

var attributeKeys = []string{"color", "size", "material"}

// IsEmpty informa se nenhum atributo foi definido.
func (a Attributes) IsEmpty() bool {
	return a.Color == "" && a.Size == "" && a.Material == ""
}

// Combination devolve cor, tamanho e material numa forma comparável.
func (a Attributes) Combination() [3]string {
	return [3]string{a.Color, a.Size, a.Material}
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var known attributesJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := unknownKeys(data, attributeKeys)
	if err != nil {
		return err
	}
	*a = Attributes{Color: known.Color, Size: known.Size, Material: known.Material, Extra: extra}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(a.Extra)+len(attributeKeys))
	for k, raw := range a.Extra {
		out[k] = raw
	}
	if a.Color != "" {
		out["color"] = a.Color
	}
	if a.Size != "" {
		out["size"] = a.Size
	}
	if a.Material != "" {
		out["material"] = a.Material
	}
	return json.Marshal(out)
}

// unknownKeys devolve as chaves do objeto que não estão em known, ou nil se não houver.
func unknownKeys(data []byte, known []string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// DecimalNumber serializa um decimal como número JSON. O shopspring/decimal usa string
// por padrão; a API hospedada espera números.
type DecimalNumber decimal.Decimal

func (d DecimalNumber) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(d).String()), nil
}

// OrderData são os dados do pedido enviados pelo cliente.
type OrderData struct {
	Color                    string `json:"color,omitempty"`
	Size                     string `json:"size,omitempty"`
	Material                 string `json:"material,omitempty"`
	StockReservationQuantity int    `json:"stockReservationQuantity"`
}

// Attributes retorna os atributos solicitados no pedido.
func (o OrderData) Attributes() Attributes {
	return Attributes{Color: o.Color, Size: o.Size, Material: o.Material}
}

// ReservationRequest descreve uma reserva de estoque a ser aplicada após a
// iniciação (não especulativa) de uma transação.
type ReservationRequest struct {
	ListingID     string
	TransactionID string
	Order         OrderData
}

// User é o usuário autenticado, conforme devolvido pela API hospedada.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

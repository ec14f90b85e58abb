package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// InitiateRequest é o payload da rota de iniciação de pedidos.
type InitiateRequest struct {
	IsSpeculative bool                   `json:"isSpeculative"`
	OrderData     OrderData              `json:"orderData"`
	BodyParams    BodyParams             `json:"bodyParams"`
	QueryParams   map[string]interface{} `json:"queryParams,omitempty"`
}

// BodyParams é o corpo repassado à API de transações.
// Params é mantido como mapa para que campos desconhecidos sejam repassados sem perdas.
type BodyParams struct {
	ProcessAlias string                 `json:"processAlias,omitempty"`
	Transition   string                 `json:"transition,omitempty"`
	Params       map[string]interface{} `json:"params"`
}

// ListingID extrai params.listingId.
func (b BodyParams) ListingID() string {
	id, _ := b.Params["listingId"].(string)
	return id
}

// APIResponse é a resposta serializada da API de transações.
type APIResponse struct {
	Status     int             `json:"status"`
	StatusText string          `json:"statusText"`
	Data       json.RawMessage `json:"data"`
}

// TransactionID extrai data.data.id da resposta de iniciação, se presente.
func (r APIResponse) TransactionID() string {
	var body struct {
		Data struct {
			ID json.RawMessage `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(r.Data, &body); err != nil {
		return ""
	}

	// O id pode vir como string ou como {"uuid": "..."}.
	var id string
	if json.Unmarshal(body.Data.ID, &id) == nil {
		return id
	}
	var wrapped struct {
		UUID string `json:"uuid"`
	}
	if json.Unmarshal(body.Data.ID, &wrapped) == nil {
		return wrapped.UUID
	}
	return ""
}

// Commission é o conteúdo do asset de comissões do marketplace.
type Commission struct {
	ProviderCommission *CommissionRate `json:"providerCommission,omitempty"`
	CustomerCommission *CommissionRate `json:"customerCommission,omitempty"`
}

// CommissionRate é um percentual de comissão (e.g., 10 = 10%).
type CommissionRate struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// Códigos e participantes das linhas do pedido.
const (
	LineItemCodeItem               = "line-item/item"
	LineItemCodeProviderCommission = "line-item/provider-commission"
	LineItemCodeCustomerCommission = "line-item/customer-commission"

	IncludeForCustomer = "customer"
	IncludeForProvider = "provider"
)

// LineItem é uma linha de preço/comissão anexada à requisição de iniciação.
type LineItem struct {
	Code       string           `json:"code"`
	UnitPrice  Money            `json:"unitPrice"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	IncludeFor []string         `json:"includeFor"`
}

// MarshalJSON envia quantidade e percentual como números JSON.
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code       string         `json:"code"`
		UnitPrice  Money          `json:"unitPrice"`
		Quantity   *DecimalNumber `json:"quantity,omitempty"`
		Percentage *DecimalNumber `json:"percentage,omitempty"`
		IncludeFor []string       `json:"includeFor"`
	}{
		Code:       li.Code,
		UnitPrice:  li.UnitPrice,
		Quantity:   (*DecimalNumber)(li.Quantity),
		Percentage: (*DecimalNumber)(li.Percentage),
		IncludeFor: li.IncludeFor,
	})
}

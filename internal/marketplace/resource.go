package marketplace

import (
	"encoding/json"

	"gostorefront/internal/domain"
)

// resourceID aceita os dois formatos de id da API: "abc" ou {"uuid": "abc"}.
type resourceID string

func (r *resourceID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = resourceID(s)
		return nil
	}
	var wrapped struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*r = resourceID(wrapped.UUID)
	return nil
}

type relationship struct {
	Data *struct {
		ID   resourceID `json:"id"`
		Type string     `json:"type"`
	} `json:"data"`
}

// listingResource é a representação de um anúncio na API.
type listingResource struct {
	ID         resourceID `json:"id"`
	Type       string     `json:"type"`
	Attributes struct {
		Title      string            `json:"title"`
		Price      *domain.Money     `json:"price"`
		PublicData domain.PublicData `json:"publicData"`
	} `json:"attributes"`
	Relationships struct {
		Author relationship `json:"author"`
	} `json:"relationships"`
}

func (r listingResource) toDomain() domain.Listing {
	l := domain.Listing{
		ID:         string(r.ID),
		Title:      r.Attributes.Title,
		Price:      r.Attributes.Price,
		PublicData: r.Attributes.PublicData,
	}
	if r.Relationships.Author.Data != nil {
		l.AuthorID = string(r.Relationships.Author.Data.ID)
	}
	return l
}

type listingEnvelope struct {
	Data listingResource `json:"data"`
}

type listingsEnvelope struct {
	Data []listingResource `json:"data"`
	Meta struct {
		TotalPages int `json:"totalPages"`
		Page       int `json:"page"`
	} `json:"meta"`
}

type userEnvelope struct {
	Data struct {
		ID         resourceID `json:"id"`
		Attributes struct {
			Profile struct {
				DisplayName string `json:"displayName"`
			} `json:"profile"`
		} `json:"attributes"`
	} `json:"data"`
}

// assetResource é um asset JSON publicado no console do marketplace.
type assetResource struct {
	Type       string `json:"type"`
	Attributes struct {
		Data json.RawMessage `json:"data"`
	} `json:"attributes"`
}

// assetEnvelope aceita data como objeto (asset único) ou lista.
type assetEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (e assetEnvelope) first() (assetResource, bool) {
	var one assetResource
	if err := json.Unmarshal(e.Data, &one); err == nil && one.Type != "" {
		return one, true
	}
	var many []assetResource
	if err := json.Unmarshal(e.Data, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return assetResource{}, false
}

package marketplace

import (
	"context"
	"encoding/json"
	"time"

	"gostorefront/internal/domain"
	"gostorefront/internal/pkg/cache"
	"gostorefront/internal/pkg/logger"
)

const commissionCacheKey = "asset:commission"

// CommissionSource é quem sabe buscar o asset de comissões.
type CommissionSource interface {
	FetchCommission(ctx context.Context) (domain.Commission, error)
}

// CachedCommission aplica Cache-Aside sobre o asset de comissões.
// Só o asset é cacheado; anúncios são sempre lidos na API.
type CachedCommission struct {
	source CommissionSource
	cache  cache.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedCommission(source CommissionSource, cacheClient cache.Client, ttl time.Duration, logger logger.Logger) *CachedCommission {
	return &CachedCommission{source: source, cache: cacheClient, ttl: ttl, logger: logger}
}

// FetchCommission tenta o cache e, em caso de miss, busca na origem e popula o cache.
// Falhas do cache não impedem a leitura.
func (c *CachedCommission) FetchCommission(ctx context.Context) (domain.Commission, error) {
	cached, err := c.cache.Get(ctx, commissionCacheKey)
	if err == nil {
		var commission domain.Commission
		if json.Unmarshal([]byte(cached), &commission) == nil {
			return commission, nil
		}
	} else if err != cache.ErrCacheMiss {
		c.logger.Warn("Falha ao ler comissão do cache.", map[string]interface{}{"error": err.Error()})
	}

	commission, err := c.source.FetchCommission(ctx)
	if err != nil {
		return domain.Commission{}, err
	}

	if payload, err := json.Marshal(commission); err == nil {
		if err := c.cache.Set(ctx, commissionCacheKey, payload, c.ttl); err != nil {
			c.logger.Warn("Falha ao gravar comissão no cache.", map[string]interface{}{"error": err.Error()})
		}
	}
	return commission, nil
}

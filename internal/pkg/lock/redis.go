package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gostorefront/internal/pkg/cache"
	"gostorefront/internal/pkg/logger"
)

// ErrLockTimeout indica que a chave não foi obtida dentro do tempo de espera.
var ErrLockTimeout = errors.New("lock: tempo de espera esgotado")

// releaseScript só apaga a chave se ela ainda pertencer ao dono do lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// renewScript estende o TTL (ARGV[2], em ms) só se a chave ainda pertencer ao dono.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// RedisLocker implementa Locker com SET NX PX, para implantações com várias instâncias.
// Enquanto o lock está com o processo, um goroutine renova o TTL a cada TTL/3.
type RedisLocker struct {
	client   cache.Client
	prefix   string
	ttl      time.Duration
	wait     time.Duration
	interval time.Duration
	logger   logger.Logger
}

// RedisOptions configura o RedisLocker.
type RedisOptions struct {
	Prefix string
	// TTL limita quanto tempo a chave sobrevive se o dono morrer sem liberá-la.
	TTL time.Duration
	// Wait é o tempo máximo de espera pela chave.
	Wait time.Duration
	// Interval é o intervalo entre tentativas.
	Interval time.Duration
}

func NewRedisLocker(client cache.Client, opts RedisOptions, logger logger.Logger) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 25 * time.Millisecond
	}
	return &RedisLocker{
		client:   client,
		prefix:   opts.Prefix,
		ttl:      opts.TTL,
		wait:     opts.Wait,
		interval: opts.Interval,
		logger:   logger,
	}
}

// Lock tenta SET NX até obter a chave ou até Wait esgotar.
//
// O contexto devolvido é cancelado com ErrLockLost como causa se uma renovação falhar
// ou se o TTL vencer localmente sem renovação confirmada.
func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	redisKey := l.prefix + key
	owner := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		sent := time.Now()
		ok, err := l.client.SetNX(waitCtx, redisKey, owner, l.ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			leaseCtx, unlock := l.hold(ctx, redisKey, owner, sent)
			return leaseCtx, unlock, nil
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, nil, fmt.Errorf("lock %s: %w", key, ErrLockTimeout)
			}
			return nil, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold inicia a renovação e devolve o contexto da posse e o unlock.
func (l *RedisLocker) hold(ctx context.Context, redisKey, owner string, acquired time.Time) (context.Context, func()) {
	leaseCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})

	go l.keepAlive(leaseCtx, cancel, redisKey, owner, acquired, stop, done)

	var once sync.Once
	return leaseCtx, func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			l.release(redisKey, owner)
		})
	}
}

// keepAlive renova o TTL enquanto o lock estiver em uso. A validade local conta a partir
// do envio do último comando confirmado, nunca da resposta.
func (l *RedisLocker) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, redisKey, owner string, acquired time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	every := l.ttl / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	renew := time.NewTicker(every)
	defer renew.Stop()
	expiry := time.NewTimer(l.ttl - time.Since(acquired))
	defer expiry.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-expiry.C:
			l.logger.Warn("Lock expirou sem renovação confirmada.", map[string]interface{}{"key": redisKey})
			cancel(ErrLockLost)
			return
		case <-renew.C:
			sent := time.Now()
			ok, err := l.renew(redisKey, owner, every)
			if err != nil {
				l.logger.Error(fmt.Sprintf("Falha ao renovar lock %s", redisKey), err)
				cancel(ErrLockLost)
				return
			}
			if !ok {
				l.logger.Warn("Lock perdido para outro dono.", map[string]interface{}{"key": redisKey})
				cancel(ErrLockLost)
				return
			}
			expiry.Reset(l.ttl - time.Since(sent))
		}
	}
}

func (l *RedisLocker) renew(redisKey, owner string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := l.client.Eval(ctx, renewScript, []string{redisKey}, owner, l.ttl.Milliseconds())
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (l *RedisLocker) release(redisKey, owner string) {
	// O contexto da operação pode já ter sido cancelado; a liberação usa o seu próprio.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := l.client.Eval(ctx, releaseScript, []string{redisKey}, owner); err != nil {
		l.logger.Error(fmt.Sprintf("Falha ao liberar lock %s", redisKey), err)
	}
}

// Package lock serializa operações por chave (e.g., por anúncio), dentro do
// processo ou entre instâncias via Redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockLost indica que o lock deixou de pertencer a quem o obteve antes do unlock.
var ErrLockLost = errors.New("lock: posse do lock perdida")

// Locker obtém acesso exclusivo a uma chave.
//
// O contexto devolvido deriva de ctx e é cancelado quando a posse termina, seja pelo
// unlock ou porque o lock expirou. Todo trabalho protegido pelo lock deve usá-lo e
// conferir o seu Err antes de gravar. O unlock deve ser chamado exatamente uma vez.
type Locker interface {
	Lock(ctx context.Context, key string) (context.Context, func(), error)
}

// KeyedMutex é um Locker em memória. Cada chave tem o seu próprio semáforo,
// removido quando não há mais ninguém esperando por ele.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock bloqueia até obter a chave ou até o contexto ser cancelado.
// Em memória a posse só termina no unlock.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, nil, ctx.Err()
	}

	leaseCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	return leaseCtx, func() {
		once.Do(func() {
			cancel()
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// size devolve quantas chaves estão em uso (para testes).
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

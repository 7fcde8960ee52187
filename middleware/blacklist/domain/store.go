package domain

import (
	"context"
	"time"
)

// Store é o store chave-valor com expiração compartilhado por todas as
// requisições (e instâncias). Toda mutação de contador ou flag deve ser uma
// operação atômica do store; ele é o único ponto de sincronização.
//
// Erros de infraestrutura devem envolver ErrStoreUnavailable.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX cria a flag com ttl somente se ela não existir. Uma flag existente
	// mantém o TTL original.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Set cria ou renova a flag com ttl.
	Set(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	// ExpireNX aplica ttl apenas se a chave existir e ainda não tiver TTL.
	ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IncrAndReset incrementa key e, se o novo valor for >= threshold, zera o
	// contador na mesma operação atômica. tripped indica o reset.
	IncrAndReset(ctx context.Context, key string, threshold int64) (n int64, tripped bool, err error)
	// TTL devolve o tempo restante; 0 se a chave não existe ou não expira.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Counter devolve o valor inteiro da chave; 0 se não existe.
	Counter(ctx context.Context, key string) (int64, error)
}

// Package lock реализует блокировки уровня пользователя для операций с балансом.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy возвращается, если блокировка пользователя уже занята.
var ErrBusy = errors.New("user operation in progress")

type userMutex struct {
	ch   chan struct{}
	refs int
}

// UserLock сериализует операции одного пользователя внутри процесса.
// Мьютексы создаются по требованию и удаляются, когда их никто не удерживает и не ждёт.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock создаёт пустой набор блокировок.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[int64]*userMutex)}
}

func (l *UserLock) acquire(userID int64) *userMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[userID]
	if !ok {
		m = &userMutex{ch: make(chan struct{}, 1)}
		l.locks[userID] = m
	}
	m.refs++
	return m
}

func (l *UserLock) release(userID int64, m *userMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(l.locks, userID)
	}
}

// Lock захватывает блокировку пользователя, ожидая её освобождения или отмены контекста.
func (l *UserLock) Lock(ctx context.Context, userID int64) error {
	m := l.acquire(userID)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(userID, m)
		return ctx.Err()
	}
}

// TryLock захватывает блокировку без ожидания.
func (l *UserLock) TryLock(userID int64) bool {
	m := l.acquire(userID)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		l.release(userID, m)
		return false
	}
}

// Unlock освобождает блокировку пользователя.
func (l *UserLock) Unlock(userID int64) {
	l.mu.Lock()
	m, ok := l.locks[userID]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-m.ch
	l.release(userID, m)
}

// WithLock выполняет fn под блокировкой пользователя.
func (l *UserLock) WithLock(ctx context.Context, userID int64, fn func() error) error {
	if err := l.Lock(ctx, userID); err != nil {
		return err
	}
	defer l.Unlock(userID)
	return fn()
}

// WithTryLock выполняет fn, только если блокировка свободна; иначе возвращает ErrBusy.
func (l *UserLock) WithTryLock(userID int64, fn func() error) error {
	if !l.TryLock(userID) {
		return ErrBusy
	}
	defer l.Unlock(userID)
	return fn()
}

// Len возвращает число пользователей с активными блокировками.
func (l *UserLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

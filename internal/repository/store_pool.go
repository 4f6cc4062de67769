package repository

import (
	"context"
	"database/sql"
	"sync"
)

// StorePool hands out VideoStores.  Every store pins a connection, so the
// pool limit is kept at the number of held stores plus headroom and the
// shared queries of the API always find a free connection.
type StorePool struct {
	db       *sql.DB
	headroom int

	mu   sync.Mutex
	held int
}

// NewStorePool sizes db for headroom shared connections.
func NewStorePool(db *sql.DB, headroom int) *StorePool {
	if headroom < 1 {
		headroom = 1
	}
	p := &StorePool{db: db, headroom: headroom}
	p.resize(0)
	return p
}

// Open reserves a connection for one worker.  It grows the pool first so
// the reservation never takes a shared connection.
func (p *StorePool) Open(ctx context.Context) (*VideoStore, error) {
	p.resize(1)
	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.resize(-1)
		return nil, err
	}
	return &VideoStore{
		VideoRepo: &VideoRepo{db: conn},
		conn:      conn,
		release:   func() { p.resize(-1) },
	}, nil
}

// Held returns the number of open stores.
func (p *StorePool) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

func (p *StorePool) resize(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held += delta
	limit := p.held + p.headroom
	p.db.SetMaxOpenConns(limit)
	p.db.SetMaxIdleConns(limit)
}

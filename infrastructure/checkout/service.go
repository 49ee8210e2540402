// Package checkout implements the receipt and item state transition rules of
// the sales counters.
//
// Every mutating method runs in one write transaction. On SQLite the write
// transaction begins IMMEDIATE, so the rows read inside it stay locked until
// commit and concurrent counters serialize on the same item or receipt.
package checkout

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"fleamarket/infrastructure/audit"
	"fleamarket/infrastructure/logger"
	"fleamarket/infrastructure/provision"
	"fleamarket/infrastructure/shortcode"
	"fleamarket/infrastructure/statelog"
)

// Store runs units of work against the database.
type Store interface {
	WithWriteTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
	WithReadTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

type Service struct {
	store      Store
	log        logger.ZapLogger
	states     *statelog.Logger
	audit      *audit.Service
	provisions provision.Lookup
	codes      *shortcode.Generator
	now        func() time.Time
}

type Option func(*Service)

func WithShortCodes(g *shortcode.Generator) Option {
	return func(s *Service) { s.codes = g }
}

func WithProvisionLookup(l provision.Lookup) Option {
	return func(s *Service) { s.provisions = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, log logger.ZapLogger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		store:      store,
		log:        log,
		states:     statelog.NewLogger(),
		audit:      audit.NewService(),
		provisions: provision.ConfigLookup{},
		codes:      shortcode.New(shortcode.DefaultDigits, shortcode.DefaultAttempts),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

const defaultCopyChunkSize = 5000

// ReferenceDBStore reads frames, lexical units and their relations from the
// FrameNet database. It never writes.
type ReferenceDBStore struct {
	conn pgxIConn
}

// NewReferenceDBStoreWithConnection wraps an existing pool or connection.
func NewReferenceDBStoreWithConnection(conn pgxIConn) *ReferenceDBStore {
	return &ReferenceDBStore{conn: conn}
}

// NetworkDBStore reads the reference graph for materialization and writes the
// node/edge cache tables.
type NetworkDBStore struct {
	conn      pgxIConn
	reference *ReferenceDBStore
	chunkSize int
}

type NetworkDBStoreOption func(*NetworkDBStore)

// WithChunkSize sets how many rows one COPY batch carries.
func WithChunkSize(n int) NetworkDBStoreOption {
	return func(s *NetworkDBStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func NewNetworkDBStoreWithConnection(conn pgxIConn, opts ...NetworkDBStoreOption) *NetworkDBStore {
	s := &NetworkDBStore{
		conn:      conn,
		reference: NewReferenceDBStoreWithConnection(conn),
		chunkSize: defaultCopyChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

package output

import (
	"context"

	"github.com/itemtally/itemtally/internal/core"
)

// ResultTable is the storage the DB sink writes to.
type ResultTable interface {
	ResetResultTable(ctx context.Context, table string) error
	InsertResult(ctx context.Context, table, provider, result string) error
}

// DBSink replaces a results table and inserts one row per result.
type DBSink struct {
	Store ResultTable
	Table string
}

// NewDBSink drops and recreates table so each run starts empty.
func NewDBSink(ctx context.Context, store ResultTable, table string) (*DBSink, error) {
	if err := store.ResetResultTable(ctx, table); err != nil {
		return nil, err
	}
	return &DBSink{Store: store, Table: table}, nil
}

func (s *DBSink) Emit(ctx context.Context, result core.CollectionResult) error {
	return s.Store.InsertResult(ctx, s.Table, result.Collector, FormatResult(result))
}

func (s *DBSink) Close() error { return nil }

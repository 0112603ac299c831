package org

import (
	"context"
	"fmt"
)

// ImportInput は社員取り込み時の入力です。
type ImportInput struct {
	From Source
}

// ImportResult は取り込み結果です。
type ImportResult struct {
	Imported int64
	RootID   string
}

// Importer は外部ソースの社員を Repository へ取り込みます。
type Importer struct {
	repo Repository
	tx   TransactionManager
}

// NewImporter は Importer を生成します。
func NewImporter(repo Repository, tx TransactionManager) *Importer {
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Importer{repo: repo, tx: tx}
}

// ImportEmployees は in.From の社員で保存済みの社員を置き換えます。
// 組織ツリーとして成立しない社員集合は保存しません。
func (i *Importer) ImportEmployees(ctx context.Context, in ImportInput) (*ImportResult, error) {
	if in.From == nil {
		return nil, fmt.Errorf("%w: import source is required", ErrConfiguration)
	}

	employees, err := in.From.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	records, err := NewRecords(employees...)
	if err != nil {
		return nil, err
	}

	hierarchy, err := BuildHierarchy(records)
	if err != nil {
		return nil, err
	}

	var imported int64
	if err := i.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		n, err := i.repo.ReplaceAll(txCtx, records.All())
		if err != nil {
			return err
		}
		imported = n
		return nil
	}); err != nil {
		return nil, err
	}

	return &ImportResult{Imported: imported, RootID: hierarchy.Root().ID}, nil
}

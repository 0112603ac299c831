package org

import "context"

// Source は社員レコードの読み込み元の抽象です。
type Source interface {
	ListAll(ctx context.Context) ([]*Employee, error)
}

// Repository は社員レコード永続化の抽象です。
type Repository interface {
	Source
	// ReplaceAll は保存済みの社員を employees で置き換え、保存件数を返します。
	ReplaceAll(ctx context.Context, employees []*Employee) (int64, error)
}

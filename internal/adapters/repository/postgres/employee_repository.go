package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	pgdb "github.com/ogurasousui/codex-org-analytics/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const (
	employeeUniqueViolationCode = "23505"
	employeeCheckViolationCode  = "23514"
)

const listEmployeesQuery = `
        SELECT id, first_name, last_name, manager_id, salary::text
          FROM employees
         ORDER BY id
    `

const insertEmployeeQuery = `
        INSERT INTO employees (id, first_name, last_name, manager_id, salary)
        VALUES ($1, $2, $3, $4, CAST($5::text AS numeric))
    `

// EmployeeRepository は PostgreSQL を利用した社員レコードの永続化実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// ListAll は保存済みの社員を ID 順に取得します。
func (r *EmployeeRepository) ListAll(ctx context.Context) ([]*org.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, listEmployeesQuery)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	var employees []*org.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}

	return employees, nil
}

// ReplaceAll は社員テーブルの内容を employees で置き換えます。
// 呼び出し側のトランザクション内で実行されることを前提とします。
func (r *EmployeeRepository) ReplaceAll(ctx context.Context, employees []*org.Employee) (int64, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM employees`); err != nil {
		return 0, translateEmployeePgError(err)
	}

	var inserted int64
	for _, e := range employees {
		tag, err := exec.Exec(ctx, insertEmployeeQuery,
			e.ID,
			e.FirstName,
			e.LastName,
			nullableString(e.ManagerID),
			e.Salary.StringFixed(2),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert employee %s: %w", e.ID, translateEmployeePgError(err))
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}

func scanEmployee(row pgx.Row) (*org.Employee, error) {
	var (
		id        string
		firstName string
		lastName  string
		managerID sql.NullString
		salaryRaw string
	)

	if err := row.Scan(&id, &firstName, &lastName, &managerID, &salaryRaw); err != nil {
		return nil, err
	}

	salary, err := decimal.NewFromString(salaryRaw)
	if err != nil {
		return nil, fmt.Errorf("postgres: employee %s salary %q: %w", id, salaryRaw, err)
	}

	return &org.Employee{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		ManagerID: managerID.String,
		Salary:    salary.Round(2),
	}, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeUniqueViolationCode:
			return fmt.Errorf("%w: %s", org.ErrDuplicateID, pgErr.Detail)
		case employeeCheckViolationCode:
			return fmt.Errorf("%w: %s violated", org.ErrConfiguration, pgErr.ConstraintName)
		}
	}

	return err
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

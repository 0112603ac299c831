package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
)

var (
	ErrInvalidRow = errors.New("csv: invalid employee row")
	ErrNoHeader   = errors.New("csv: missing header line")
)

var maxSalary = decimal.NewFromInt(1_000_000_000)

var rowValidate *validator.Validate

func init() {
	rowValidate = validator.New()
	_ = rowValidate.RegisterValidation("salary", validateSalary)
}

// employeeRow は CSV 1 行分の入力です。
type employeeRow struct {
	ID        string `validate:"required,len=10,alphanum"`
	FirstName string `validate:"required,max=50,alpha"`
	LastName  string `validate:"required,max=50,alpha"`
	Salary    string `validate:"required,salary"`
	ManagerID string `validate:"omitempty,max=10,alphanum"`
}

func validateSalary(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.LessThanOrEqual(maxSalary)
}

// EmployeeSource は "Id,firstName,lastName,salary,managerId" 形式の CSV ファイルを読み込みます。
type EmployeeSource struct {
	fs   afero.Fs
	path string
}

// NewEmployeeSource は EmployeeSource を生成します。fs が nil の場合は OS のファイルシステムを使用します。
func NewEmployeeSource(fs afero.Fs, path string) *EmployeeSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &EmployeeSource{fs: fs, path: path}
}

// ListAll はファイル内の社員を行順に返します。
func (s *EmployeeSource) ListAll(ctx context.Context) ([]*org.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", s.path, err)
	}
	defer f.Close()

	employees, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return employees, nil
}

// Parse はヘッダー行を読み飛ばし、各行を検証して社員に変換します。
// 給与は小数第 2 位で四捨五入します。
func Parse(r io.Reader) ([]*org.Employee, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	var employees []*org.Employee
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		emp, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		employees = append(employees, emp)
	}

	return employees, nil
}

func parseRow(fields []string) (*org.Employee, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 4 or 5 fields, got %d", ErrInvalidRow, len(fields))
	}

	row := employeeRow{
		ID:        strings.TrimSpace(fields[0]),
		FirstName: strings.TrimSpace(fields[1]),
		LastName:  strings.TrimSpace(fields[2]),
		Salary:    strings.TrimSpace(fields[3]),
	}
	if len(fields) == 5 {
		row.ManagerID = strings.TrimSpace(fields[4])
	}

	if err := rowValidate.Struct(row); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRow, describeValidation(err))
	}

	salary, err := decimal.NewFromString(row.Salary)
	if err != nil {
		return nil, fmt.Errorf("%w: salary: %v", ErrInvalidRow, err)
	}

	return &org.Employee{
		ID:        row.ID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		ManagerID: row.ManagerID,
		Salary:    salary.Round(2),
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}

package csvfile

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestParse_Success(t *testing.T) {
	t.Parallel()

	input := `Id,firstName,lastName,salary,managerId
0000000001,Alice,Smith,2000,
0000000002, Bob ,Jones,1500.555,0000000001
0000000003,Carol,White,1200.5,0000000002
`

	employees, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if len(employees) != 3 {
		t.Fatalf("expected 3 employees, got %d", len(employees))
	}

	ceo := employees[0]
	if ceo.ID != "0000000001" || ceo.ManagerID != "" || !ceo.IsRoot() {
		t.Fatalf("unexpected root row: %+v", ceo)
	}
	if got := ceo.Salary.StringFixed(2); got != "2000.00" {
		t.Fatalf("expected salary 2000.00, got %s", got)
	}

	bob := employees[1]
	if bob.FirstName != "Bob" {
		t.Fatalf("expected trimmed first name, got %q", bob.FirstName)
	}
	if got := bob.Salary.String(); got != "1500.56" {
		t.Fatalf("expected salary rounded half up to 1500.56, got %s", got)
	}
	if bob.ManagerID != "0000000001" {
		t.Fatalf("unexpected manager id %q", bob.ManagerID)
	}
}

func TestParse_FourColumnRoot(t *testing.T) {
	t.Parallel()

	employees, err := Parse(strings.NewReader("Id,firstName,lastName,salary,managerId\n0000000001,Alice,Smith,2000\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(employees) != 1 || employees[0].ManagerID != "" {
		t.Fatalf("expected a single root, got %+v", employees)
	}
}

func TestParse_InvalidRows(t *testing.T) {
	t.Parallel()

	header := "Id,firstName,lastName,salary,managerId\n"
	tests := []struct {
		name string
		row  string
		want string
	}{
		{name: "short id", row: "123,Alice,Smith,2000,", want: "ID failed len=10"},
		{name: "non alnum id", row: "000000000-,Alice,Smith,2000,", want: "ID failed alphanum"},
		{name: "empty first name", row: "0000000001,,Smith,2000,", want: "FirstName failed required"},
		{name: "digits in last name", row: "0000000001,Alice,Sm1th,2000,", want: "LastName failed alpha"},
		{name: "negative salary", row: "0000000001,Alice,Smith,-1,", want: "Salary failed salary"},
		{name: "salary too large", row: "0000000001,Alice,Smith,1000000000.01,", want: "Salary failed salary"},
		{name: "salary not a number", row: "0000000001,Alice,Smith,abc,", want: "Salary failed salary"},
		{name: "long manager id", row: "0000000001,Alice,Smith,2000,00000000001", want: "ManagerID failed max=10"},
		{name: "too few fields", row: "0000000001,Alice,Smith", want: "expected 4 or 5 fields"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(header + tt.row + "\n"))
			if !errors.Is(err, ErrInvalidRow) {
				t.Fatalf("expected ErrInvalidRow, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to contain %q, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "line 2") {
				t.Fatalf("expected line number in error, got %v", err)
			}
		})
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := Parse(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}

	employees, err := Parse(strings.NewReader("Id,firstName,lastName,salary,managerId\n"))
	if err != nil {
		t.Fatalf("header only returned error: %v", err)
	}
	if len(employees) != 0 {
		t.Fatalf("expected no employees, got %d", len(employees))
	}
}

func TestEmployeeSource_ListAll(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	content := "Id,firstName,lastName,salary,managerId\n0000000001,Alice,Smith,2000,\n0000000002,Bob,Jones,1500,0000000001\n"
	if err := afero.WriteFile(fs, "/data/employees.csv", []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	src := NewEmployeeSource(fs, "/data/employees.csv")
	employees, err := src.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(employees) != 2 || employees[1].ManagerID != "0000000001" {
		t.Fatalf("unexpected employees: %+v", employees)
	}
}

func TestEmployeeSource_ListAll_Errors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	src := NewEmployeeSource(fs, "/missing.csv")
	if _, err := src.ListAll(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ListAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

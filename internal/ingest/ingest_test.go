package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for sheet, rows := range sheets {
		if sheet != "Sheet1" {
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadFileExcel(t *testing.T) {
	buf := workbook(t, map[string][][]any{
		"Employees": {
			{"Employee No.", "Full Name", "Current Position", "Dept", "Grade", "Years of Experience", "Skills"},
			{"XL-001", "Siti Rahma", "NOC Engineer", "Network Ops", "G5", 7, "MPLS; BGP | Juniper"},
			{},
			{"SF-042", "Budi Santoso", "RF Planner", "Radio", "G4", 3.6, ""},
		},
	})

	rows, err := ReadFile(buf, "wave1.XLSX")
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank rows are skipped")
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "XL-001", rows[0].Values["employee_no"])
	assert.Equal(t, "NOC Engineer", rows[0].Get("position", "current_position"))

	emps, rowErrs := Employees(rows)
	require.Empty(t, rowErrs)
	require.Len(t, emps, 2)
	assert.Equal(t, "Siti Rahma", emps[0].Name)
	assert.Equal(t, []string{"MPLS", "BGP", "Juniper"}, emps[0].Skills)
	assert.Equal(t, 7, emps[0].YearsExperience)
	assert.Equal(t, 4, emps[1].YearsExperience)
	assert.Equal(t, []string{}, emps[1].Skills)
}

func TestReadFileCSV(t *testing.T) {
	data := "\ufeffTitle,Department,Level,Company,Description\n" +
		"Core Network Engineer,Technology,Senior,XL,Runs the packet core\n" +
		",Technology,Junior,Smartfren,\n" +
		"  Tower Tech ,Field Ops,Junior,Smartfren,\"Climbs, fixes\"\n"

	rows, err := ReadFile(strings.NewReader(data), "roles.csv")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	roles, rowErrs := SourceRoles(rows)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 3, rowErrs[0].Line)
	assert.Equal(t, "line 3: missing role title", rowErrs[0].Error())

	require.Len(t, roles, 2)
	assert.Equal(t, "Core Network Engineer", roles[0].Title)
	assert.Equal(t, "XL", roles[0].SourceCompany)
	assert.Equal(t, "Tower Tech", roles[1].Title)
	assert.Equal(t, "Climbs, fixes", roles[1].Description)
}

func TestReadFileErrors(t *testing.T) {
	_, err := ReadFile(strings.NewReader("x"), "employees.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadFile(strings.NewReader("name,position\n"), "header-only.csv")
	assert.ErrorIs(t, err, ErrEmptySheet)

	_, err = ReadFile(strings.NewReader("not a zip"), "broken.xlsx")
	assert.Error(t, err)

	empty := workbook(t, map[string][][]any{"Sheet1": {}})
	_, err = ReadFile(empty, "empty.xlsx")
	assert.ErrorIs(t, err, ErrEmptySheet)

	var b strings.Builder
	b.WriteString("name,position\n")
	for range MaxRows + 1 {
		b.WriteString("a,b\n")
	}
	_, err = ReadFile(strings.NewReader(b.String()), "huge.csv")
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestFromRecords(t *testing.T) {
	rows, err := FromRecords([]map[string]any{
		{"Employee ID": "XL-7", "Name": "Ayu", "Position": "Data Analyst", "Years Experience": float64(2), "Skills": []any{"SQL", "Python"}, "Notes": nil},
		{"Name": "No Position"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	emps, rowErrs := Employees(rows)
	require.Len(t, emps, 1)
	assert.Equal(t, "XL-7", emps[0].EmployeeNumber)
	assert.Equal(t, 2, emps[0].YearsExperience)
	assert.Equal(t, []string{"SQL", "Python"}, emps[0].Skills)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, "missing position", rowErrs[0].Message)

	_, err = FromRecords(nil)
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestEmployeesRowErrors(t *testing.T) {
	rows := []Row{
		{Line: 2, Values: map[string]string{"position": "NOC"}},
		{Line: 3, Values: map[string]string{"name": "A", "position": "NOC", "experience": "ten"}},
		{Line: 4, Values: map[string]string{"name": "B", "position": "NOC", "experience": "-1"}},
		{Line: 5, Values: map[string]string{"nik": "123", "role": "NOC", "experience": "5 years"}},
	}
	emps, errs := Employees(rows)
	require.Len(t, emps, 1)
	assert.Equal(t, "123", emps[0].EmployeeNumber)
	assert.Equal(t, 5, emps[0].YearsExperience)

	require.Len(t, errs, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{errs[0].Line, errs[1].Line, errs[2].Line})
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"Employee No.":            "employee_no",
		"  Years of  Experience ": "years_of_experience",
		"e-mail":                  "e_mail",
		"ID":                      "id",
		"---":                     "",
		"Jabatan/Posisi":          "jabatan_posisi",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"MPLS", "BGP", "5G"}, SplitList("MPLS, BGP;mpls |5G\n"))
	assert.Equal(t, []string{}, SplitList(""))
}

func TestReadRoleCatalog(t *testing.T) {
	roles, err := ReadRoleCatalog(strings.NewReader(`
roles:
  - title: Network Engineer
    department: Technology
    level: Senior
    required_skills: [IP/MPLS, BGP]
  - title: Data Analyst
    level: Mid
`))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, []string{"IP/MPLS", "BGP"}, roles[0].RequiredSkills)
	assert.Equal(t, []string{}, roles[1].RequiredSkills)

	_, err = ReadRoleCatalog(strings.NewReader("roles:\n  - level: Mid\n"))
	assert.ErrorContains(t, err, "missing title")

	_, err = ReadRoleCatalog(strings.NewReader("roles:\n  - title: X\n    salary: 10\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

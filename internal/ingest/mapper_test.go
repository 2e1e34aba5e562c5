package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMapHeader(t *testing.T) {
	cols := MapHeader([]string{"Company Name", "Industry", "Employees", "Annual Budget", "EMAIL", "junk"})
	assert.Equal(t, map[string]int{
		"company":        0,
		"industry":       1,
		"employee_count": 2,
		"annual_budget":  3,
		"email":          4,
	}, cols)
}

func TestMapHeader_DuplicateAliasKeepsFirst(t *testing.T) {
	cols := MapHeader([]string{"Company", "Name"})
	assert.Equal(t, 0, cols["company"])
}

func TestLeadFromRow(t *testing.T) {
	cols := MapHeader([]string{"company", "industry", "employees", "budget", "location", "email"})
	lead, err := LeadFromRow(cols, []string{"ABC Construction", "construction", "1,200", "$75,000.50", "Albany NY", "a@abc.com"}, "csv-import")
	require.NoError(t, err)

	assert.Equal(t, "ABC Construction", lead.Company)
	assert.Equal(t, 1200, lead.EmployeeCount)
	assert.Equal(t, 75000.50, lead.AnnualBudget)
	assert.Equal(t, "csv-import", lead.Source)
}

func TestLeadFromRow_NoCompany(t *testing.T) {
	cols := MapHeader([]string{"company", "email"})
	_, err := LeadFromRow(cols, []string{"   ", "a@b.com"}, "csv-import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no company name")
}

func TestLeadFromRow_ShortRow(t *testing.T) {
	cols := MapHeader([]string{"company", "industry", "email"})
	lead, err := LeadFromRow(cols, []string{"Solo Co"}, "csv-import")
	require.NoError(t, err)
	assert.Equal(t, "Solo Co", lead.Company)
	assert.Empty(t, lead.Email)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"150", 150},
		{"1,200", 1200},
		{"150.0", 150},
		{"", 0},
		{"unknown", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCount(tt.in), "input %q", tt.in)
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"75000", 75000},
		{"$75,000.50", 75000.50},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseMoney(tt.in), "input %q", tt.in)
	}
}

func TestReadLeadsCSV(t *testing.T) {
	path := writeTempFile(t, "leads.csv",
		"Company,Industry,Employees,Budget,Email\n"+
			"ABC Construction,construction,150,75000,a@abc.com\n"+
			",retail,10,1000,skip@me.com\n"+
			"Bob's Shop,retail,5,8000,bob@shop.com\n")

	leads, skipped, err := ReadLeadsCSV(context.Background(), path, "broker-feed", CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, leads, 2)
	assert.Equal(t, "ABC Construction", leads[0].Company)
	assert.Equal(t, "broker-feed", leads[0].Source)
	assert.Equal(t, "Bob's Shop", leads[1].Company)
}

func TestReadLeadsJSON(t *testing.T) {
	path := writeTempFile(t, "leads.json",
		`[{"company":"ABC Construction","industry":"construction","employee_count":150},
		  {"company":"","industry":"retail"},
		  {"company":"Bob's Shop","source":"referral"}]`)

	leads, skipped, err := ReadLeadsJSON(context.Background(), path, "json-feed")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, leads, 2)
	assert.Equal(t, "json-feed", leads[0].Source)
	assert.Equal(t, "referral", leads[1].Source)
}

func TestReadLeadsFile_UnsupportedType(t *testing.T) {
	_, _, err := ReadLeadsFile(context.Background(), "leads.pdf", "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadLeadsFile_CSVDispatch(t *testing.T) {
	path := writeTempFile(t, "leads.csv", "Company\nABC Construction\n")

	leads, skipped, err := ReadLeadsFile(context.Background(), path, "feed")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, leads, 1)
	assert.Equal(t, "ABC Construction", leads[0].Company)
}

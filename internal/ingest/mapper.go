package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// columnAliases maps the header names seen across broker exports to lead
// fields. Keys are normalized (lowercase, underscores).
var columnAliases = map[string]string{
	"company":       "company",
	"company_name":  "company",
	"business":      "company",
	"business_name": "company",
	"name":          "company",

	"industry": "industry",
	"vertical": "industry",
	"sector":   "industry",

	"employees":      "employee_count",
	"employee_count": "employee_count",
	"headcount":      "employee_count",
	"num_employees":  "employee_count",

	"budget":           "annual_budget",
	"annual_budget":    "annual_budget",
	"insurance_budget": "annual_budget",

	"source":      "source",
	"lead_source": "source",
	"channel":     "source",

	"location": "location",
	"city":     "location",
	"market":   "location",
	"region":   "location",

	"email":         "email",
	"email_address": "email",

	"phone":        "phone",
	"phone_number": "phone",
	"telephone":    "phone",

	"website": "website",
	"url":     "website",
	"domain":  "website",

	"description": "description",
	"notes":       "description",
	"comments":    "description",
}

// MapHeader resolves a header row to lead field positions. Unrecognized
// columns are ignored; duplicate aliases keep the first occurrence.
func MapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, raw := range header {
		norm := normalizeColumn(raw)
		field, ok := columnAliases[norm]
		if !ok {
			continue
		}
		if _, seen := cols[field]; !seen {
			cols[field] = i
		}
	}
	return cols
}

func normalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// LeadFromRow builds a Lead from a mapped row. A row without a company name
// is rejected; everything else is optional and parsed leniently, since broker
// exports are messy.
func LeadFromRow(cols map[string]int, row []string, source string) (model.Lead, error) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	lead := model.Lead{
		Company:     get("company"),
		Industry:    get("industry"),
		Location:    get("location"),
		Email:       get("email"),
		Phone:       get("phone"),
		Website:     get("website"),
		Description: get("description"),
		Source:      get("source"),
	}
	if lead.Company == "" {
		return model.Lead{}, eris.New("ingest: row has no company name")
	}
	if lead.Source == "" {
		lead.Source = source
	}

	lead.EmployeeCount = parseCount(get("employee_count"))
	lead.AnnualBudget = parseMoney(get("annual_budget"))

	return lead, nil
}

// parseCount parses an employee count, tolerating thousands separators and
// decimal exports like "150.0". Unparseable values become 0.
func parseCount(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// parseMoney parses a budget value, stripping currency symbols and
// separators. Unparseable values become 0.
func parseMoney(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// leadRecord is the JSON feed shape for a single lead.
type leadRecord struct {
	Company       string  `json:"company"`
	Industry      string  `json:"industry"`
	EmployeeCount int     `json:"employee_count"`
	AnnualBudget  float64 `json:"annual_budget"`
	Source        string  `json:"source"`
	Location      string  `json:"location"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Website       string  `json:"website"`
	Description   string  `json:"description"`
}

func (r leadRecord) toLead(defaultSource string) (model.Lead, error) {
	if strings.TrimSpace(r.Company) == "" {
		return model.Lead{}, eris.New("ingest: record has no company name")
	}
	source := r.Source
	if source == "" {
		source = defaultSource
	}
	return model.Lead{
		Company:       strings.TrimSpace(r.Company),
		Industry:      r.Industry,
		EmployeeCount: r.EmployeeCount,
		AnnualBudget:  r.AnnualBudget,
		Source:        source,
		Location:      r.Location,
		Email:         r.Email,
		Phone:         r.Phone,
		Website:       r.Website,
		Description:   r.Description,
	}, nil
}

// ReadLeadsCSV parses an entire CSV lead list. Rows that cannot be mapped are
// skipped and counted; a feed where nothing parses is an error.
func ReadLeadsCSV(ctx context.Context, path, source string, opts CSVOptions) ([]model.Lead, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	opts.HasHeader = true
	opts.HeaderCh = headerCh
	opts.TrimSpace = true

	rowCh, errCh := StreamCSV(ctx, f, opts)

	var cols map[string]int
	var leads []model.Lead
	skipped := 0
	for row := range rowCh {
		if cols == nil {
			select {
			case header := <-headerCh:
				cols = MapHeader(header)
			default:
				return nil, 0, eris.New("ingest: csv missing header row")
			}
		}
		lead, err := LeadFromRow(cols, row, source)
		if err != nil {
			skipped++
			continue
		}
		leads = append(leads, lead)
	}
	if err := <-errCh; err != nil {
		return nil, skipped, err
	}
	if len(leads) == 0 && skipped > 0 {
		return nil, skipped, eris.Errorf("ingest: no parseable rows in %s (%d skipped)", path, skipped)
	}
	return leads, skipped, nil
}

// ReadLeadsXLSX parses an XLSX lead list. The first row is the header.
func ReadLeadsXLSX(path, source string, opts XLSXOptions) ([]model.Lead, int, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, eris.Errorf("ingest: empty sheet in %s", path)
	}

	cols := MapHeader(rows[0])
	var leads []model.Lead
	skipped := 0
	for _, row := range rows[1:] {
		lead, err := LeadFromRow(cols, row, source)
		if err != nil {
			skipped++
			continue
		}
		leads = append(leads, lead)
	}
	return leads, skipped, nil
}

// ReadLeadsJSON parses a JSON array lead feed.
func ReadLeadsJSON(ctx context.Context, path, source string) ([]model.Lead, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	recCh, errCh := DecodeJSONArray[leadRecord](ctx, f)

	var leads []model.Lead
	skipped := 0
	for rec := range recCh {
		lead, err := rec.toLead(source)
		if err != nil {
			skipped++
			continue
		}
		leads = append(leads, lead)
	}
	if err := <-errCh; err != nil {
		return nil, skipped, err
	}
	return leads, skipped, nil
}

// ReadLeadsFile parses a lead list, dispatching on file extension. ZIP
// archives must contain a single lead file.
func ReadLeadsFile(ctx context.Context, path, source string) ([]model.Lead, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadLeadsCSV(ctx, path, source, CSVOptions{})
	case ".xlsx":
		return ReadLeadsXLSX(path, source, XLSXOptions{})
	case ".json":
		return ReadLeadsJSON(ctx, path, source)
	case ".zip":
		tmpDir, err := os.MkdirTemp("", "leadflow-ingest-*")
		if err != nil {
			return nil, 0, eris.Wrap(err, "ingest: temp dir")
		}
		defer os.RemoveAll(tmpDir) //nolint:errcheck

		inner, err := ExtractZIPSingle(path, tmpDir)
		if err != nil {
			return nil, 0, err
		}
		return ReadLeadsFile(ctx, inner, source)
	default:
		return nil, 0, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

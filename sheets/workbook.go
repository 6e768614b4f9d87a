// Package sheets stores the ledger, the channel reports and the FBA
// inventory count in an .xlsx workbook. Row ids are sheet row numbers.
package sheets

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/xuri/excelize/v2"
)

var (
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrHeaderNotFound = errors.New("header not found")
	ErrNoPath         = errors.New("workbook has no path")
)

// headerRow holds the column titles used by bracketed column specs.
const headerRow = 1

type Workbook struct {
	mu      sync.Mutex
	file    *excelize.File
	path    string
	cfg     *config.Config
	loc     *time.Location
	headers map[string]map[string]int
}

func Open(path string, cfg *config.Config) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	w := New(f, cfg)
	w.path = path
	return w, nil
}

// New wraps an already opened file. Save needs SaveAs until a path is known.
func New(f *excelize.File, cfg *config.Config) *Workbook {
	return &Workbook{
		file:    f,
		cfg:     cfg,
		loc:     cfg.Location(),
		headers: map[string]map[string]int{},
	}
}

func (w *Workbook) File() *excelize.File {
	return w.file
}

func (w *Workbook) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.path == "" {
		return ErrNoPath
	}
	return w.file.SaveAs(w.path)
}

func (w *Workbook) SaveAs(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.SaveAs(path); err != nil {
		return err
	}
	w.path = path
	return nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) formatDate(t time.Time) string {
	return t.In(w.loc).Format(w.cfg.DateFormat)
}

func (w *Workbook) rows(sheet string) ([][]string, error) {
	if idx, err := w.file.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	return w.file.GetRows(sheet)
}

// column resolves a column ref to a 1-based column number.
// An empty ref resolves to 0, meaning the sheet has no such column.
func (w *Workbook) column(sheet, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, nil
	}
	if !strings.HasPrefix(ref, "[") {
		return excelize.ColumnNameToNumber(ref)
	}
	name := strings.TrimSuffix(strings.TrimPrefix(ref, "["), "]")
	headers, ok := w.headers[sheet]
	if !ok {
		rows, err := w.rows(sheet)
		if err != nil {
			return 0, err
		}
		headers = map[string]int{}
		if len(rows) >= headerRow {
			for i, title := range rows[headerRow-1] {
				title = strings.TrimSpace(title)
				if _, dup := headers[title]; title != "" && !dup {
					headers[title] = i + 1
				}
			}
		}
		w.headers[sheet] = headers
	}
	col, ok := headers[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q in sheet %q", ErrHeaderNotFound, name, sheet)
	}
	return col, nil
}

// columns resolves several refs at once, stopping at the first failure.
func (w *Workbook) columns(sheet string, refs ...string) ([]int, error) {
	out := make([]int, len(refs))
	for i, ref := range refs {
		col, err := w.column(sheet, ref)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

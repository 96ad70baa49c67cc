package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// optionHeader matches "Question [Option]"
var optionHeader = regexp.MustCompile(`^(.*?)\s*\[(.+)\]\s*$`)

// marks accepted in multiple-response columns besides the option label itself
var multiMarks = map[string]bool{"0": true, "1": true, "x": true, "sim": true, "yes": true}

// XLSXRunner reads the first sheet of a workbook and builds the frequency tables
type XLSXRunner struct {
	Output string
}

// NewXLSXRunner writes its summary to output
func NewXLSXRunner(output string) *XLSXRunner {
	return &XLSXRunner{Output: output}
}

type column struct {
	index  int
	option string
}

type question struct {
	name    string
	columns []column
	grouped bool
}

// Run implements Runner
func (x *XLSXRunner) Run(ctx context.Context, xlsxPath string) (*Result, error) {
	result, err := ParseWorkbook(xlsxPath)
	if err != nil {
		return nil, err
	}
	if x.Output == "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding summary: %w", err)
		}
		result.JSON = string(data)
		return result, nil
	}
	result.Logs = append(result.Logs, "Summary written to "+x.Output)
	if err := WriteSummary(ctx, x.Output, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ParseWorkbook builds a Result from the first sheet of the workbook
func ParseWorkbook(path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoData
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	result, err := buildResult(rows)
	if err != nil {
		return nil, err
	}
	result.Logs = append([]string{fmt.Sprintf("Sheet %q loaded", sheets[0])}, result.Logs...)
	slog.Debug("survey parsed",
		slog.String("file", path),
		slog.Int("respondents", result.Respondents),
		slog.Int("questions", result.Questions()))
	return result, nil
}

func buildResult(rows [][]string) (*Result, error) {
	if len(rows) < 2 {
		return nil, ErrNoData
	}
	header := rows[0]

	var data [][]string
	for _, row := range rows[1:] {
		if !isBlankRow(row) {
			data = append(data, row)
		}
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}

	result := NewResult()
	result.Respondents = len(data)
	result.Logf("%d respondents, %d columns", len(data), len(header))

	for _, q := range groupQuestions(header) {
		if !q.grouped {
			addSimple(result, q, data)
			continue
		}
		switch {
		case isMultiResponse(q, data):
			addMulti(result, q, data)
		case isNumeric(q, data):
			addMatrix(result, q, data, true)
		default:
			addMatrix(result, q, data, false)
		}
	}

	result.Logf("%d single choice, %d multiple response, %d text matrix, %d score matrix",
		len(result.Simple), len(result.Multi), len(result.Matrix), len(result.Scores))
	return result, nil
}

// groupQuestions collects "Q [A]", "Q [B]" columns under Q, keeping header order
func groupQuestions(header []string) []*question {
	var order []*question
	byName := make(map[string]*question)

	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		name, option, grouped := h, "", false
		if m := optionHeader.FindStringSubmatch(h); m != nil && strings.TrimSpace(m[1]) != "" {
			name, option, grouped = strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
		}

		key := name
		if !grouped {
			key = "\x00" + name
		}
		q, ok := byName[key]
		if !ok {
			q = &question{name: name, grouped: grouped}
			byName[key] = q
			order = append(order, q)
		}
		q.columns = append(q.columns, column{index: i, option: option})
	}
	return order
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isMultiResponse(q *question, data [][]string) bool {
	seen := false
	for _, col := range q.columns {
		for _, row := range data {
			v := strings.ToLower(cell(row, col.index))
			if v == "" {
				continue
			}
			if !multiMarks[v] && v != strings.ToLower(col.option) {
				return false
			}
			seen = true
		}
	}
	return seen
}

func isMarked(v, option string) bool {
	v = strings.ToLower(v)
	return v != "" && v != "0" && (multiMarks[v] || v == strings.ToLower(option))
}

func isNumeric(q *question, data [][]string) bool {
	seen := false
	for _, col := range q.columns {
		for _, row := range data {
			v := cell(row, col.index)
			if v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64); err != nil {
				return false
			}
			seen = true
		}
	}
	return seen
}

func addSimple(result *Result, q *question, data [][]string) {
	c := newCounter()
	empty := 0
	for _, row := range data {
		for _, col := range q.columns {
			v := cell(row, col.index)
			if v == "" {
				empty++
				continue
			}
			c.add(v)
		}
	}
	if c.total == 0 {
		result.Logf("%q has no answers, skipped", q.name)
		return
	}
	if empty > 0 {
		result.Logf("%q: %d empty answers skipped", q.name, empty)
	}
	result.Simple[q.name] = c.table(c.total)
}

// addMulti counts marked cells per option; percentages are over all respondents
func addMulti(result *Result, q *question, data [][]string) {
	t := make(Table, 0, len(q.columns))
	for _, col := range q.columns {
		n := 0
		for _, row := range data {
			if isMarked(cell(row, col.index), col.option) {
				n++
			}
		}
		t = append(t, Row{Value: col.option, Count: n, Percent: percent(n, len(data))})
	}
	result.Multi[q.name] = t
}

func addMatrix(result *Result, q *question, data [][]string, numeric bool) {
	items := make(map[string]Table, len(q.columns))
	for _, col := range q.columns {
		c := newCounter()
		for _, row := range data {
			v := cell(row, col.index)
			if v == "" {
				continue
			}
			if numeric {
				v = normalizeScore(v)
			}
			c.add(v)
		}
		if c.total == 0 {
			result.Logf("%q [%s] has no answers, skipped", q.name, col.option)
			continue
		}
		if numeric {
			items[col.option] = c.scoreTable(c.total)
		} else {
			items[col.option] = c.table(c.total)
		}
	}
	if len(items) == 0 {
		return
	}
	if numeric {
		result.Scores[q.name] = items
	} else {
		result.Matrix[q.name] = items
	}
}

// normalizeScore renders 7, "7.0" and "7,0" the same way
func normalizeScore(v string) string {
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

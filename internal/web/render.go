package web

import (
	"bytes"
	"html/template"
	"log/slog"
	"sort"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ilumeo/aimarketing/internal/etl"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// markdownHTML renders model output. Raw HTML in the source is escaped by goldmark.
func markdownHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		slog.Warn("web: markdown render failed", slog.Any("error", err))
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// namedTable is a frequency table with its title, for templates
type namedTable struct {
	Title string
	Rows  etl.Table
}

func simpleTables(m map[string]etl.Table) []namedTable {
	out := make([]namedTable, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, namedTable{Title: k, Rows: m[k]})
	}
	return out
}

func matrixTables(m map[string]map[string]etl.Table) []namedTable {
	var out []namedTable
	for _, q := range sortedKeys(m) {
		for _, item := range sortedKeys(m[q]) {
			out = append(out, namedTable{Title: q + " [" + item + "]", Rows: m[q][item]})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": markdownHTML,
		"pct": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 1, 64) + "%"
		},
	}
}

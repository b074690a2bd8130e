// Package export turns applications into printable documents and tabular
// exports. Rendering to PDF happens outside the service.
package export

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"
)

// Line is one priced row of a document.
type Line struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Patient struct {
	Name        string `json:"name"`
	BirthDate   string `json:"birthDate,omitempty"`
	TCNo        string `json:"tcNo,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	RequestDate string `json:"requestDate,omitempty"`
}

// Document is the printable form of one application.
type Document struct {
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Number      string    `json:"number"`
	Patient     Patient   `json:"patient"`
	Tests       []Line    `json:"tests"`
	Packages    []Line    `json:"packages,omitempty"`
	Total       int64     `json:"total"`
	Currency    string    `json:"currency"`
	DealerName  string    `json:"dealerName,omitempty"`
	Status      string    `json:"status"`
	DoctorNotes string    `json:"doctorNotes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	GeneratedAt time.Time `json:"generatedAt"`
	Footer      string    `json:"footer"`
}

// Header identifies the lab on every document.
type Header struct {
	LabName  string
	Subtitle string
	Currency string
	Footer   string
}

var DefaultHeader = Header{
	LabName:  "Laboratuvar",
	Subtitle: "Test İstek Formu",
	Currency: "TL",
	Footer:   "Bu belge bilgisayar ortamında oluşturulmuştur.",
}

// Apply fills the lab specific fields of d.
func (h Header) Apply(d *Document, now time.Time) {
	d.Title = h.LabName
	d.Subtitle = h.Subtitle
	d.Currency = h.Currency
	d.Footer = h.Footer
	d.GeneratedAt = now
}

// Row is one line of the tabular export.
type Row struct {
	ID         string
	CreatedAt  time.Time
	Patient    string
	TCNo       string
	Phone      string
	Tests      []string
	Packages   []string
	TotalPrice int64
	TotalCost  int64
	Profit     int64
	DealerName string
	Status     string
}

var csvHeader = []string{
	"id", "created_at", "patient", "tc_no", "phone", "tests", "packages",
	"total_price", "total_cost", "profit", "dealer", "status",
}

// WriteCSV writes rows with a UTF-8 byte order mark so spreadsheet programs
// detect the encoding of Turkish names.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			neutralize(r.Patient),
			neutralize(r.TCNo),
			neutralize(r.Phone),
			neutralize(strings.Join(r.Tests, "; ")),
			neutralize(strings.Join(r.Packages, "; ")),
			strconv.FormatInt(r.TotalPrice, 10),
			strconv.FormatInt(r.TotalCost, 10),
			strconv.FormatInt(r.Profit, 10),
			neutralize(r.DealerName),
			r.Status,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// neutralize prefixes cells a spreadsheet would evaluate as a formula.
func neutralize(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("02.01.2006") },
	"money": func(v int64, cur string) string { return fmt.Sprintf("%d %s", v, cur) },
}).Parse(`<!DOCTYPE html>
<html lang="tr">
<head>
<meta charset="utf-8">
<title>{{.Title}} - {{.Number}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
h1, h2 { text-align: center; margin: 0.2em; }
table { width: 100%; border-collapse: collapse; margin-top: 1em; }
td, th { border: 1px solid #999; padding: 4px 8px; text-align: left; }
td.price { text-align: right; }
footer { margin-top: 3em; text-align: center; font-size: 0.8em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<h2>{{.Subtitle}}</h2>
<section>
<p><strong>Hasta:</strong> {{.Patient.Name}}</p>
{{with .Patient.BirthDate}}<p><strong>Doğum Tarihi:</strong> {{.}}</p>{{end}}
{{with .Patient.TCNo}}<p><strong>TC No:</strong> {{.}}</p>{{end}}
{{with .Patient.Phone}}<p><strong>Telefon:</strong> {{.}}</p>{{end}}
{{with .Patient.Email}}<p><strong>E-posta:</strong> {{.}}</p>{{end}}
{{with .DealerName}}<p><strong>Bayi:</strong> {{.}}</p>{{end}}
</section>
<table>
<tr><th>Test Adı</th><th>Fiyat</th></tr>
{{range .Tests}}<tr><td>{{.Name}}</td><td class="price">{{money .Price $.Currency}}</td></tr>
{{end}}</table>
{{if .Packages}}<table>
<tr><th>Paket</th><th>Fiyat</th></tr>
{{range .Packages}}<tr><td>{{.Name}}</td><td class="price">{{money .Price $.Currency}}</td></tr>
{{end}}</table>{{end}}
<p><strong>Toplam Tutar:</strong> {{money .Total .Currency}}</p>
{{with .DoctorNotes}}<p><strong>Doktor Notu:</strong> {{.}}</p>{{end}}
<footer>
<p>{{.Footer}}</p>
<p>Başvuru Tarihi: {{date .CreatedAt}} · Oluşturulma Tarihi: {{date .GeneratedAt}}</p>
</footer>
</body>
</html>
`))

// RenderHTML writes d as a self-contained printable page.
func RenderHTML(w io.Writer, d *Document) error {
	return documentTemplate.Execute(w, d)
}

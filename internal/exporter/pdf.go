package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"

	"reportexport/internal/report"
)

// ErrNoRenderer is returned by the PDF encoder when no renderer is wired.
var ErrNoRenderer = errors.New("pdf renderer not configured")

// PDFStyle holds the visual parameters of generated documents.
type PDFStyle struct {
	FontSize          float64 `yaml:"font_size" envconfig:"FONT_SIZE"`
	CellPadding       float64 `yaml:"cell_padding" envconfig:"CELL_PADDING"`
	HeaderColor       string  `yaml:"header_color" envconfig:"HEADER_COLOR"`
	BackupHeaderColor string  `yaml:"backup_header_color" envconfig:"BACKUP_HEADER_COLOR"`
	StripeColor       string  `yaml:"stripe_color" envconfig:"STRIPE_COLOR"`
	PaperWidth        float64 `yaml:"paper_width" envconfig:"PAPER_WIDTH"`
	PaperHeight       float64 `yaml:"paper_height" envconfig:"PAPER_HEIGHT"`
	Margin            float64 `yaml:"margin" envconfig:"MARGIN"`
}

// DefaultPDFStyle returns A4 landscape with the standard colors.
func DefaultPDFStyle() PDFStyle {
	return PDFStyle{
		FontSize:          8,
		CellPadding:       3,
		HeaderColor:       "#2980b9",
		BackupHeaderColor: "#27ae60",
		StripeColor:       "#f5f5f5",
		PaperWidth:        8.27,
		PaperHeight:       11.69,
		Margin:            0.4,
	}
}

// PageSetup is the printed page geometry, in inches.
type PageSetup struct {
	Landscape   bool
	PaperWidth  float64
	PaperHeight float64
	Margin      float64
}

// Document is a laid out report ready to be printed.
type Document struct {
	HTML   []byte
	Footer string
	Page   PageSetup
}

// PDFRenderer prints a Document. Table pagination and page breaks are left
// to the renderer's layout engine.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, doc Document) ([]byte, error)
}

// PDFEncoder writes reports as landscape paginated documents.
type PDFEncoder struct {
	opts     Options
	renderer PDFRenderer
}

// NewPDFEncoder creates a PDF encoder printing through renderer.
func NewPDFEncoder(opts Options, renderer PDFRenderer) *PDFEncoder {
	return &PDFEncoder{opts: opts, renderer: renderer}
}

// Format implements Encoder.
func (e *PDFEncoder) Format() report.Format {
	return report.FormatPDF
}

// Encode implements Encoder.
func (e *PDFEncoder) Encode(ctx context.Context, w io.Writer, r report.Report) error {
	if e.renderer == nil {
		return ErrNoRenderer
	}
	doc, err := e.Layout(r)
	if err != nil {
		return err
	}
	pdf, err := e.renderer.RenderPDF(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	_, err = w.Write(pdf)
	return err
}

type pdfTable struct {
	Heading        string
	Start, End     string
	TotalSpaceUsed string
	Columns        []string
	Rows           [][]string
	HeaderStyle    template.CSS
	Striped        bool
}

type pdfPage struct {
	Title      string
	Stylesheet template.CSS
	Tables     []pdfTable
}

type pdfFooter struct {
	Generated string
	Counts    []string
	FontSize  float64
}

// Layout builds the HTML document and footer for r without printing it.
func (e *PDFEncoder) Layout(r report.Report) (Document, error) {
	style := e.opts.PDF
	page := pdfPage{
		Title:      documentTitle(r),
		Stylesheet: stylesheet(style),
	}

	footer := pdfFooter{
		Generated: e.opts.now().Format(TimestampLayout),
		FontSize:  style.FontSize,
	}

	switch v := r.(type) {
	case report.Single:
		page.Tables = []pdfTable{newPDFTable("", v.Data, style.HeaderColor, true)}
		footer.Counts = []string{"Total rows: " + formatInt(len(v.Data.Rows))}
	case report.Combined:
		page.Tables = []pdfTable{
			newPDFTable(report.SectionCloud, v.Cloud, style.HeaderColor, false),
			newPDFTable(report.SectionBackup, v.Backup, style.BackupHeaderColor, false),
		}
		footer.Counts = []string{
			"Cloud services: " + formatInt(len(v.Cloud.Rows)),
			"Backup servers: " + formatInt(len(v.Backup.Rows)),
		}
	default:
		return Document{}, fmt.Errorf("unsupported report type %T", r)
	}

	var body, foot bytes.Buffer
	if err := pdfTemplate.Execute(&body, page); err != nil {
		return Document{}, fmt.Errorf("failed to lay out document: %w", err)
	}
	if err := footerTemplate.Execute(&foot, footer); err != nil {
		return Document{}, fmt.Errorf("failed to lay out footer: %w", err)
	}

	return Document{
		HTML:   body.Bytes(),
		Footer: foot.String(),
		Page: PageSetup{
			Landscape:   true,
			PaperWidth:  style.PaperWidth,
			PaperHeight: style.PaperHeight,
			Margin:      style.Margin,
		},
	}, nil
}

func newPDFTable(heading string, d report.Data, headerColor string, striped bool) pdfTable {
	t := pdfTable{
		Heading:        heading,
		Start:          d.Dates.StartText(),
		End:            d.Dates.EndText(),
		TotalSpaceUsed: d.TotalSpaceUsed,
		Columns:        d.Columns,
		Rows:           make([][]string, len(d.Rows)),
		HeaderStyle:    template.CSS(fmt.Sprintf("background-color: %s; color: #ffffff;", headerColor)),
		Striped:        striped,
	}
	for i := range d.Rows {
		t.Rows[i] = d.Record(i)
	}
	return t
}

func stylesheet(s PDFStyle) template.CSS {
	return template.CSS(fmt.Sprintf(`
body { font-family: Helvetica, Arial, sans-serif; font-size: %[1]gpt; color: #222; margin: 0; }
h1 { font-size: %[2]gpt; margin: 0 0 6px 0; }
h2 { font-size: %[3]gpt; margin: 14px 0 4px 0; }
p.meta { margin: 0 0 4px 0; color: #555; }
table { width: 100%%; border-collapse: collapse; margin-top: 6px; }
thead { display: table-header-group; }
tr { page-break-inside: avoid; }
th, td { padding: %[4]gpx; border: 1px solid #dddddd; text-align: left; }
th { font-weight: bold; }
table.striped tbody tr:nth-child(even) { background-color: %[5]s; }
`, s.FontSize, s.FontSize*2, s.FontSize*1.5, s.CellPadding, s.StripeColor))
}

var pdfTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.Stylesheet}}</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Tables}}{{$t := .}}<section>
{{if .Heading}}<h2>{{.Heading}}</h2>
{{end}}<p class="meta">Period: {{.Start}} to {{.End}}</p>
{{if .TotalSpaceUsed}}<p class="meta">Total Space Used: {{.TotalSpaceUsed}}</p>
{{end}}<table{{if .Striped}} class="striped"{{end}}>
<thead><tr>{{range .Columns}}<th style="{{$t.HeaderStyle}}">{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</section>
{{end}}</body>
</html>
`))

var footerTemplate = template.Must(template.New("footer").Parse(
	`<div style="font-size: {{.FontSize}}px; width: 100%; text-align: center; color: #555;">` +
		`Generated on {{.Generated}}{{range .Counts}} | {{.}}{{end}}` +
		` | Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`))

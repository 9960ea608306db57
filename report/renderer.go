package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/invoiceapp/invoiceapp/internal/invoice"
	"github.com/invoiceapp/invoiceapp/web"
)

// Renderer turns an invoice projection into a PDF document.
type Renderer struct {
	gotenberg *Gotenberg
	tmpl      *template.Template
	logger    *slog.Logger
}

// NewRenderer parses the embedded invoice template and wires the converter.
func NewRenderer(gotenberg *Gotenberg, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	printer := message.NewPrinter(language.English)
	tmpl, err := template.New("invoice.html").Funcs(template.FuncMap{
		"money": func(v float64) string {
			return printer.Sprintf("$%v", number.Decimal(v,
				number.MinFractionDigits(2), number.MaxFractionDigits(2)))
		},
		"date": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
	}).ParseFS(web.Templates, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Renderer{gotenberg: gotenberg, tmpl: tmpl, logger: logger}, nil
}

// Render produces the PDF bytes for the given invoice view.
func (r *Renderer) Render(ctx context.Context, view *invoice.PublicView) ([]byte, error) {
	var html bytes.Buffer
	if err := r.tmpl.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", view.Number, err)
	}

	pdf, err := r.gotenberg.ConvertHTML(ctx, html.Bytes())
	if err != nil {
		r.logger.Error("convert invoice pdf",
			slog.String("number", view.Number),
			slog.Any("error", err))
		return nil, err
	}
	return pdf, nil
}

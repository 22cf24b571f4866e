package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/fakturku/fakturku/internal/invoicing"
	"github.com/fakturku/fakturku/internal/ledger"
	"github.com/fakturku/fakturku/internal/masterdata"
	"github.com/fakturku/fakturku/internal/shared"
)

// TemplateStore looks up stored invoice layouts.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id int64) (*masterdata.InvoiceTemplate, error)
	GetDefaultTemplate(ctx context.Context) (*masterdata.InvoiceTemplate, error)
}

// InvoiceRenderer turns an invoice into a PDF. Layout comes from a
// stored template when one is selected or marked default, otherwise a
// built-in layout is used.
type InvoiceRenderer struct {
	client    *Client
	templates TemplateStore
}

// NewInvoiceRenderer constructs a renderer.
func NewInvoiceRenderer(client *Client, templates TemplateStore) *InvoiceRenderer {
	return &InvoiceRenderer{client: client, templates: templates}
}

// ItemView is one invoice line prepared for display.
type ItemView struct {
	Description string
	Quantity    string
	UnitPrice   string
	Discount    string
	Subtotal    string
}

// InvoiceView is the model stored templates execute against.
type InvoiceView struct {
	InvoiceNo       string
	Status          string
	IssueDate       string
	DueDate         string
	Currency        string
	Notes           string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Items           []ItemView
	Subtotal        string
	Discount        string
	Tax             string
	Total           string
	TotalPaid       string
	Remaining       string
	GeneratedAt     string
}

// RenderInvoice executes the layout for the invoice and converts the
// result to PDF. A templateID of zero selects the default template.
func (r *InvoiceRenderer) RenderInvoice(ctx context.Context, detail *invoicing.InvoiceDetail, templateID int64) ([]byte, error) {
	layout, err := r.layout(ctx, templateID)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("invoice").Parse(layout)
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildView(detail)); err != nil {
		return nil, fmt.Errorf("execute invoice template: %w", err)
	}

	return r.client.RenderHTML(ctx, buf.String())
}

func (r *InvoiceRenderer) layout(ctx context.Context, templateID int64) (string, error) {
	if templateID > 0 {
		t, err := r.templates.GetTemplate(ctx, templateID)
		if err != nil {
			return "", err
		}
		return t.Content, nil
	}
	t, err := r.templates.GetDefaultTemplate(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return builtinLayout, nil
	}
	if err != nil {
		return "", err
	}
	return t.Content, nil
}

func buildView(detail *invoicing.InvoiceDetail) InvoiceView {
	view := InvoiceView{
		InvoiceNo:   detail.InvoiceNo,
		Status:      string(detail.Status),
		Currency:    detail.Currency,
		Notes:       detail.Notes,
		IssueDate:   formatDate(detail.IssueDate),
		DueDate:     formatDate(detail.DueDate),
		Subtotal:    ledger.FormatAmount(detail.Subtotal),
		Discount:    ledger.FormatAmount(detail.Discount),
		Tax:         ledger.FormatAmount(detail.Tax),
		Total:       ledger.FormatAmount(detail.Total),
		TotalPaid:   ledger.FormatAmount(detail.TotalPaid),
		Remaining:   ledger.FormatAmount(detail.Remaining),
		GeneratedAt: time.Now().Format("02 January 2006 15:04"),
	}
	if detail.Customer != nil {
		view.CustomerName = detail.Customer.Name
		view.CustomerEmail = detail.Customer.Email
		view.CustomerPhone = detail.Customer.Phone
		view.CustomerAddress = detail.Customer.Address
	}
	for _, item := range detail.Items {
		view.Items = append(view.Items, ItemView{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   ledger.FormatAmount(item.UnitPrice),
			Discount:    ledger.FormatAmount(item.Discount),
			Subtotal:    ledger.FormatAmount(item.Subtotal),
		})
	}
	return view
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02 January 2006")
}

const builtinLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1f2937; margin: 40px; }
h1 { font-size: 20px; margin: 0 0 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { padding: 6px 8px; border-bottom: 1px solid #e5e7eb; text-align: left; }
th { background: #f3f4f6; text-transform: uppercase; font-size: 10px; }
td.num, th.num { text-align: right; }
.totals { width: 40%; margin-left: auto; }
.totals td { border: none; }
.muted { color: #6b7280; }
</style>
</head>
<body>
<h1>Invoice {{.InvoiceNo}}</h1>
<p class="muted">Status: {{.Status}} &middot; Terbit: {{.IssueDate}} &middot; Jatuh tempo: {{.DueDate}}</p>
<p>
<strong>{{.CustomerName}}</strong><br>
{{if .CustomerAddress}}{{.CustomerAddress}}<br>{{end}}
{{if .CustomerEmail}}{{.CustomerEmail}}<br>{{end}}
{{if .CustomerPhone}}{{.CustomerPhone}}{{end}}
</p>
<table>
<tr><th>Deskripsi</th><th class="num">Qty</th><th class="num">Harga</th><th class="num">Diskon</th><th class="num">Subtotal</th></tr>
{{range .Items}}
<tr><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Discount}}</td><td class="num">{{.Subtotal}}</td></tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.Currency}} {{.Subtotal}}</td></tr>
<tr><td>Diskon</td><td class="num">{{.Currency}} {{.Discount}}</td></tr>
<tr><td>Pajak</td><td class="num">{{.Currency}} {{.Tax}}</td></tr>
<tr><td><strong>Total</strong></td><td class="num"><strong>{{.Currency}} {{.Total}}</strong></td></tr>
<tr><td>Dibayar</td><td class="num">{{.Currency}} {{.TotalPaid}}</td></tr>
<tr><td>Sisa</td><td class="num">{{.Currency}} {{.Remaining}}</td></tr>
</table>
{{if .Notes}}<p class="muted">{{.Notes}}</p>{{end}}
<p class="muted">Dibuat {{.GeneratedAt}}</p>
</body>
</html>`

package invoice

import (
	"fmt"
	"strconv"
	"time"
)

// Fixed template text shared by every target.
const (
	LabelTitle     = "TAX INVOICE"
	LabelShipTo    = "Same as billing address"
	LabelThankYou  = "Thank you for your business!"
	LabelSubtotal  = "Subtotal:"
	LabelTax       = "Total Tax:"
	LabelDiscount  = "Discount:"
	LabelAmountDue = "AMOUNT DUE:"
	LabelDueDate   = "Due Date:"
)

var fixedTerms = []string{
	"Late payment may incur additional charges",
	"All work completed as per agreed specifications",
	"Please include invoice number with payment",
}

// CompanyBlock is the issuing company header.
type CompanyBlock struct {
	Name     string
	Email    string
	Phone    string
	Whatsapp string
	Address  string
}

// MetaBlock holds the invoice identification strings.
type MetaBlock struct {
	Title         string
	InvoiceNumber string
	Date          string
	DueDate       string
}

// ClientBlock holds the bill-to and ship-to strings.
type ClientBlock struct {
	CompanyName   string
	ContactPerson string
	Address       string
	Phone         string
	Email         string
	ShipTo        string
}

// ItemRow is a formatted line item.
type ItemRow struct {
	Key         string
	Quantity    string
	Description string
	Rate        string
	TaxRate     string
	Amount      string
}

// TotalLine is a single row of the totals block.
type TotalLine struct {
	Label   string
	Value   string
	Visible bool
	Alert   bool
}

func (l TotalLine) String() string {
	return l.Label + " " + l.Value
}

// TotalsBlock holds the totals rows. Tax and discount rows are suppressed
// unless their amount is strictly positive.
type TotalsBlock struct {
	Subtotal  TotalLine
	Tax       TotalLine
	Discount  TotalLine
	AmountDue TotalLine
}

// Lines returns the visible rows in display order, excluding AmountDue.
func (t TotalsBlock) Lines() []TotalLine {
	lines := make([]TotalLine, 0, 3)
	for _, line := range []TotalLine{t.Subtotal, t.Tax, t.Discount} {
		if line.Visible {
			lines = append(lines, line)
		}
	}
	return lines
}

// PaymentBlock holds the banking details.
type PaymentBlock struct {
	BankName      string
	AccountNumber string
	IFSCCode      string
	AccountHolder string
	UPIID         string
}

// TermsBlock holds the terms and conditions.
type TermsBlock struct {
	DueDays string
	Lines   []string
}

// Model is the fully formatted invoice, independent of the output medium.
type Model struct {
	Company   CompanyBlock
	Meta      MetaBlock
	Client    ClientBlock
	Items     []ItemRow
	Totals    TotalsBlock
	Payment   PaymentBlock
	Terms     TermsBlock
	Currency  string
	ThankYou  string
	DueFooter string
}

// ModelOptions tunes model assembly.
type ModelOptions struct {
	// Location fixes the zone dates are rendered in. Defaults to UTC.
	Location *time.Location
}

// ResolveCurrency picks the display currency: the invoice currency when set,
// else the defaultCurrency setting, else INR.
func ResolveCurrency(inv Invoice, settings Settings) string {
	if inv.Currency != "" {
		return NormalizeCurrency(inv.Currency)
	}
	return NormalizeCurrency(settings.ValueOrDefault(SettingDefaultCurrency))
}

// BuildModel assembles the rendering model for an invoice.
func BuildModel(inv Invoice, settings Settings, opts ModelOptions) (Model, error) {
	dates := DateFormatter{Location: opts.Location}
	currency := ResolveCurrency(inv, settings)
	money := func(field, amount string) (string, error) {
		formatted, err := FormatCurrency(amount, currency)
		if err != nil {
			return "", fieldError(field, err)
		}
		return formatted, nil
	}

	date, err := dates.Format(inv.Date)
	if err != nil {
		return Model{}, fieldError("date", err)
	}
	dueDate, err := dates.Format(inv.DueDate)
	if err != nil {
		return Model{}, fieldError("dueDate", err)
	}

	items := make([]ItemRow, 0, len(inv.Items))
	for i, item := range inv.Items {
		rate, err := money(fmt.Sprintf("items[%d].rate", i), item.Rate)
		if err != nil {
			return Model{}, err
		}
		amount, err := money(fmt.Sprintf("items[%d].amount", i), item.Amount)
		if err != nil {
			return Model{}, err
		}
		key := item.ID
		if key == "" {
			key = strconv.Itoa(i)
		}
		items = append(items, ItemRow{
			Key:         key,
			Quantity:    formatNumber(item.Quantity),
			Description: item.Description,
			Rate:        rate,
			TaxRate:     formatNumber(item.TaxRate) + "%",
			Amount:      amount,
		})
	}

	totals, err := buildTotals(inv, currency)
	if err != nil {
		return Model{}, err
	}

	dueDays := settings.ValueOrDefault(SettingDefaultDueDays)
	terms := make([]string, 0, len(fixedTerms)+1)
	terms = append(terms, fmt.Sprintf("Payment is due within %s days from invoice date", dueDays))
	terms = append(terms, fixedTerms...)

	return Model{
		Company: CompanyBlock{
			Name:     settings.ValueOrDefault(SettingCompanyName),
			Email:    settings.ValueOrDefault(SettingCompanyEmail),
			Phone:    settings.ValueOrDefault(SettingCompanyPhone),
			Whatsapp: settings.ValueOrDefault(SettingCompanyWhatsapp),
			Address:  settings.ValueOrDefault(SettingCompanyAddress),
		},
		Meta: MetaBlock{
			Title:         LabelTitle,
			InvoiceNumber: inv.InvoiceNumber,
			Date:          date,
			DueDate:       dueDate,
		},
		Client: ClientBlock{
			CompanyName:   inv.Client.CompanyName,
			ContactPerson: inv.Client.ContactPerson,
			Address:       inv.Client.Address,
			Phone:         inv.Client.Phone,
			Email:         inv.Client.Email,
			ShipTo:        LabelShipTo,
		},
		Items:  items,
		Totals: totals,
		Payment: PaymentBlock{
			BankName:      settings.ValueOrDefault(SettingBankName),
			AccountNumber: settings.ValueOrDefault(SettingAccountNumber),
			IFSCCode:      settings.ValueOrDefault(SettingIFSCCode),
			AccountHolder: settings.ValueOrDefault(SettingAccountHolderName),
			UPIID:         settings.ValueOrDefault(SettingUPIID),
		},
		Terms:     TermsBlock{DueDays: dueDays, Lines: terms},
		Currency:  currency,
		ThankYou:  LabelThankYou,
		DueFooter: LabelDueDate + " " + dueDate,
	}, nil
}

func buildTotals(inv Invoice, currency string) (TotalsBlock, error) {
	subtotal, err := FormatCurrency(inv.Subtotal, currency)
	if err != nil {
		return TotalsBlock{}, fieldError("subtotal", err)
	}
	total, err := FormatCurrency(inv.Total, currency)
	if err != nil {
		return TotalsBlock{}, fieldError("total", err)
	}

	taxValue, err := ParseAmount(inv.TaxAmount)
	if err != nil {
		return TotalsBlock{}, fieldError("taxAmount", err)
	}
	discountValue, err := ParseAmount(inv.DiscountAmount)
	if err != nil {
		return TotalsBlock{}, fieldError("discountAmount", err)
	}

	return TotalsBlock{
		Subtotal: TotalLine{Label: LabelSubtotal, Value: subtotal, Visible: true},
		Tax: TotalLine{
			Label:   LabelTax,
			Value:   FormatAmount(taxValue, currency),
			Visible: taxValue.IsPositive(),
		},
		Discount: TotalLine{
			Label:   LabelDiscount,
			Value:   "-" + FormatAmount(discountValue, currency),
			Visible: discountValue.IsPositive(),
			Alert:   discountValue.IsPositive(),
		},
		AmountDue: TotalLine{Label: LabelAmountDue, Value: total, Visible: true},
	}, nil
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func fieldError(field string, err error) error {
	kind := KindFromError(err)
	if kind == KindInternal {
		kind = KindParse
	}
	return NewError(kind, fmt.Sprintf("invoice %s", field), err)
}

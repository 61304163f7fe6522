// Package storebun persists invoice settings and invoices with Bun.
package storebun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-invoice/invoice"
)

// CreateSchema creates the settings and invoices tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return invoice.NewError(invoice.KindNotImpl, "database not configured", nil)
	}
	models := []any{(*settingModel)(nil), (*invoiceModel)(nil)}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SettingsRepository stores settings rows in insertion order.
type SettingsRepository struct {
	DB  *bun.DB
	Now func() time.Time
}

var _ invoice.SettingsSource = (*SettingsRepository)(nil)

// NewSettingsRepository creates a Bun-backed settings repository.
func NewSettingsRepository(db *bun.DB) *SettingsRepository {
	return &SettingsRepository{DB: db, Now: time.Now}
}

// Load returns every setting ordered by insertion.
func (r *SettingsRepository) Load(ctx context.Context) (invoice.Settings, error) {
	if r == nil || r.DB == nil {
		return nil, invoice.NewError(invoice.KindNotImpl, "settings database not configured", nil)
	}
	models := make([]settingModel, 0)
	if err := r.DB.NewSelect().Model(&models).Order("id ASC").Scan(ctx); err != nil {
		return nil, invoice.NewError(invoice.KindSettingsFetch, "load settings", err)
	}
	settings := make(invoice.Settings, 0, len(models))
	for _, model := range models {
		settings = append(settings, invoice.Setting{Key: model.Key, Value: model.Value})
	}
	return settings, nil
}

// Set inserts or replaces a setting value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if r == nil || r.DB == nil {
		return invoice.NewError(invoice.KindNotImpl, "settings database not configured", nil)
	}
	if key == "" {
		return invoice.NewError(invoice.KindValidation, "setting key is required", nil)
	}
	model := settingModel{Key: key, Value: value, UpdatedAt: r.now()}
	_, err := r.DB.NewInsert().Model(&model).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Delete removes a setting.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if r == nil || r.DB == nil {
		return invoice.NewError(invoice.KindNotImpl, "settings database not configured", nil)
	}
	if key == "" {
		return invoice.NewError(invoice.KindValidation, "setting key is required", nil)
	}
	res, err := r.DB.NewDelete().Model((*settingModel)(nil)).Where("? = ?", bun.Ident("key"), key).Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return invoice.NewError(invoice.KindNotFound, fmt.Sprintf("setting %q not found", key), nil)
	}
	return nil
}

func (r *SettingsRepository) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// InvoiceRepository stores invoices with their client and line items.
type InvoiceRepository struct {
	DB  *bun.DB
	Now func() time.Time
}

var _ invoice.InvoiceSource = (*InvoiceRepository)(nil)

// NewInvoiceRepository creates a Bun-backed invoice repository.
func NewInvoiceRepository(db *bun.DB) *InvoiceRepository {
	return &InvoiceRepository{DB: db, Now: time.Now}
}

// Invoice returns an invoice by ID.
func (r *InvoiceRepository) Invoice(ctx context.Context, id string) (invoice.Invoice, error) {
	if r == nil || r.DB == nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindNotImpl, "invoice database not configured", nil)
	}
	if id == "" {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "invoice ID is required", nil)
	}

	model := new(invoiceModel)
	err := r.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.Invoice{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("invoice %q not found", id), nil)
		}
		return invoice.Invoice{}, err
	}
	return model.toInvoice()
}

// IDs lists stored invoice IDs ordered by invoice number.
func (r *InvoiceRepository) IDs(ctx context.Context) ([]string, error) {
	if r == nil || r.DB == nil {
		return nil, invoice.NewError(invoice.KindNotImpl, "invoice database not configured", nil)
	}
	var ids []string
	err := r.DB.NewSelect().
		Model((*invoiceModel)(nil)).
		Column("id").
		Order("invoice_number ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Save inserts or replaces an invoice.
func (r *InvoiceRepository) Save(ctx context.Context, inv invoice.Invoice) error {
	if r == nil || r.DB == nil {
		return invoice.NewError(invoice.KindNotImpl, "invoice database not configured", nil)
	}
	if inv.ID == "" {
		return invoice.NewError(invoice.KindValidation, "invoice ID is required", nil)
	}
	if inv.InvoiceNumber == "" {
		return invoice.NewError(invoice.KindValidation, "invoice number is required", nil)
	}

	model, err := modelFromInvoice(inv, r.now())
	if err != nil {
		return err
	}
	_, err = r.DB.NewInsert().Model(&model).
		On("CONFLICT (id) DO UPDATE").
		Set("invoice_number = EXCLUDED.invoice_number").
		Set("date = EXCLUDED.date").
		Set("due_date = EXCLUDED.due_date").
		Set("currency = EXCLUDED.currency").
		Set("subtotal = EXCLUDED.subtotal").
		Set("tax_amount = EXCLUDED.tax_amount").
		Set("discount_amount = EXCLUDED.discount_amount").
		Set("total = EXCLUDED.total").
		Set("client_company_name = EXCLUDED.client_company_name").
		Set("client_contact_person = EXCLUDED.client_contact_person").
		Set("client_address = EXCLUDED.client_address").
		Set("client_phone = EXCLUDED.client_phone").
		Set("client_email = EXCLUDED.client_email").
		Set("items = EXCLUDED.items").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *InvoiceRepository) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

type settingModel struct {
	bun.BaseModel `bun:"table:settings,alias:settings"`

	ID        int64     `bun:",pk,autoincrement"`
	Key       string    `bun:",unique,notnull"`
	Value     string    `bun:",notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

type invoiceModel struct {
	bun.BaseModel `bun:"table:invoices,alias:invoices"`

	ID                  string    `bun:",pk"`
	InvoiceNumber       string    `bun:"invoice_number,notnull"`
	Date                string    `bun:"date,notnull"`
	DueDate             string    `bun:"due_date,notnull"`
	Currency            string    `bun:"currency"`
	Subtotal            string    `bun:"subtotal,notnull"`
	TaxAmount           string    `bun:"tax_amount,notnull"`
	DiscountAmount      string    `bun:"discount_amount,notnull"`
	Total               string    `bun:"total,notnull"`
	ClientCompanyName   string    `bun:"client_company_name"`
	ClientContactPerson string    `bun:"client_contact_person"`
	ClientAddress       string    `bun:"client_address"`
	ClientPhone         string    `bun:"client_phone"`
	ClientEmail         string    `bun:"client_email"`
	Items               []byte    `bun:"items"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero"`
}

func modelFromInvoice(inv invoice.Invoice, now time.Time) (invoiceModel, error) {
	items := inv.Items
	if items == nil {
		items = []invoice.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return invoiceModel{}, err
	}
	return invoiceModel{
		ID:                  inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		Date:                inv.Date,
		DueDate:             inv.DueDate,
		Currency:            inv.Currency,
		Subtotal:            inv.Subtotal,
		TaxAmount:           inv.TaxAmount,
		DiscountAmount:      inv.DiscountAmount,
		Total:               inv.Total,
		ClientCompanyName:   inv.Client.CompanyName,
		ClientContactPerson: inv.Client.ContactPerson,
		ClientAddress:       inv.Client.Address,
		ClientPhone:         inv.Client.Phone,
		ClientEmail:         inv.Client.Email,
		Items:               payload,
		UpdatedAt:           now,
	}, nil
}

func (m invoiceModel) toInvoice() (invoice.Invoice, error) {
	inv := invoice.Invoice{
		ID:             m.ID,
		InvoiceNumber:  m.InvoiceNumber,
		Date:           m.Date,
		DueDate:        m.DueDate,
		Currency:       m.Currency,
		Subtotal:       m.Subtotal,
		TaxAmount:      m.TaxAmount,
		DiscountAmount: m.DiscountAmount,
		Total:          m.Total,
		Client: invoice.Client{
			CompanyName:   m.ClientCompanyName,
			ContactPerson: m.ClientContactPerson,
			Address:       m.ClientAddress,
			Phone:         m.ClientPhone,
			Email:         m.ClientEmail,
		},
	}
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &inv.Items); err != nil {
			return invoice.Invoice{}, invoice.NewError(invoice.KindParse, fmt.Sprintf("invoice %q items", m.ID), err)
		}
	}
	return inv, nil
}

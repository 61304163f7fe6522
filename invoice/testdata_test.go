package invoice

func sampleInvoice() Invoice {
	return Invoice{
		ID:             "inv-1",
		InvoiceNumber:  "INV-001",
		Date:           "2024-01-15",
		DueDate:        "2024-02-14",
		Subtotal:       "1000",
		TaxAmount:      "180",
		DiscountAmount: "0",
		Total:          "1180",
		Items: []LineItem{
			{ID: "item-1", Quantity: 2, Description: "Widget", Rate: "500", TaxRate: 18, Amount: "1000"},
		},
		Client: Client{
			CompanyName:   "Client Co",
			ContactPerson: "Jane",
			Address:       "1 Main St",
			Phone:         "555",
			Email:         "jane@example.com",
		},
	}
}

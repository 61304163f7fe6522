package invoice

import "testing"

func TestFilename_PDFUsesInvoiceNumber(t *testing.T) {
	name, err := Filename("", Invoice{InvoiceNumber: "INV-001"}, TargetPDF)
	if err != nil {
		t.Fatalf("filename: %v", err)
	}
	if name != "INV-001.pdf" {
		t.Fatalf("expected INV-001.pdf, got %q", name)
	}
}

func TestFilename_SanitizesSeparators(t *testing.T) {
	name, err := Filename("", Invoice{InvoiceNumber: "INV/2024\\7"}, TargetHTML)
	if err != nil {
		t.Fatalf("filename: %v", err)
	}
	if name != "INV-2024-7.html" {
		t.Fatalf("unexpected filename %q", name)
	}
}

func TestFilename_Errors(t *testing.T) {
	if _, err := Filename("", Invoice{}, TargetPDF); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error for empty number, got %v", err)
	}
	if _, err := Filename("{{.Missing}}", Invoice{InvoiceNumber: "x"}, TargetPDF); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error for bad pattern, got %v", err)
	}
}

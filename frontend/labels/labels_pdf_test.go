package labels

import (
	"bytes"
	"fmt"
	"testing"
)

func TestRenderItemLabelsPDFGeneratesPDF(t *testing.T) {
	t.Parallel()

	pdf, err := renderItemLabelsPDF([]ItemLabel{
		{Code: "A1", Name: "Teapot", Price: 1250, VendorID: 1},
		{Code: "A2", Name: "A rather long description of a porcelain cup set", Price: 300, VendorID: 1},
	})
	if err != nil {
		t.Fatalf("renderItemLabelsPDF returned error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("expected pdf output")
	}
}

func TestRenderItemLabelsPDFSpansPages(t *testing.T) {
	t.Parallel()

	labels := make([]ItemLabel, 0, 30)
	for i := range 30 {
		labels = append(labels, ItemLabel{Code: fmt.Sprintf("B%03d", i), Name: "Book", Price: 100, VendorID: 2})
	}
	pdf, err := renderItemLabelsPDF(labels)
	if err != nil {
		t.Fatalf("renderItemLabelsPDF returned error: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatalf("expected non-empty pdf bytes")
	}
}

func TestRenderItemLabelsPDFRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := renderItemLabelsPDF(nil); err == nil {
		t.Fatalf("expected error for empty label list")
	}
}

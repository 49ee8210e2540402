package labels

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

const (
	sheetColumns = 3
	sheetRows    = 8
	sheetMargin  = 8.0
)

// renderItemLabelsPDF lays the tags out on A4 sheets, three across and eight
// down, each with the code as a code128 barcode.
func renderItemLabelsPDF(labels []ItemLabel) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Item Labels", false)
	pdf.SetAutoPageBreak(false, 0)

	pageW, pageH := pdf.GetPageSize()
	cellW := (pageW - 2*sheetMargin) / sheetColumns
	cellH := (pageH - 2*sheetMargin) / sheetRows
	perPage := sheetColumns * sheetRows

	for i, label := range labels {
		slot := i % perPage
		if slot == 0 {
			pdf.AddPage()
		}
		x := sheetMargin + float64(slot%sheetColumns)*cellW
		y := sheetMargin + float64(slot/sheetColumns)*cellH
		if err := addItemLabel(pdf, label, i, x, y, cellW, cellH); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func addItemLabel(pdf *gofpdf.Fpdf, label ItemLabel, index int, x, y, w, h float64) error {
	barcodePNG, err := renderCode128PNG(label.Code, 600, 120)
	if err != nil {
		return err
	}

	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(160, 160, 160)
	pdf.Rect(x+1, y+1, w-2, h-2, "D")

	pdf.SetTextColor(80, 80, 80)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(x+3, y+2)
	pdf.CellFormat(w-6, 4, "Vendor "+strconv.FormatInt(label.VendorID, 10), "", 0, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	nameFont := fitFontSizeForWidth(pdf, "Helvetica", "B", 10, 6, label.Name, w-6)
	pdf.SetFont("Helvetica", "B", nameFont)
	pdf.SetXY(x+3, y+8)
	pdf.CellFormat(w-6, 4, label.Name, "", 0, "L", false, 0, "")

	price := decimal.New(label.Price, -2).StringFixed(2)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(x+3, y+2)
	pdf.CellFormat(w-6, 7, price, "", 0, "R", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "item-barcode-" + strconv.Itoa(index)
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
	barcodeH := h - 21
	if barcodeH < 8 {
		barcodeH = 8
	}
	pdf.ImageOptions(imageName, x+4, y+13, w-8, barcodeH, false, opt, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(x+3, y+h-7)
	pdf.CellFormat(w-6, 4, label.Code, "", 0, "C", false, 0, "")
	return nil
}

func fitFontSizeForWidth(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	bounds := scaled.Bounds()
	normalized := image.NewNRGBA(bounds)
	draw.Draw(normalized, bounds, scaled, bounds.Min, draw.Src)
	var out bytes.Buffer
	if err := png.Encode(&out, normalized); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

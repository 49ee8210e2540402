package receipts

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"fleamarket/infrastructure/checkout"
	"fleamarket/models"
)

// receiptCode is the barcode value printed on a receipt.
func receiptCode(id int64) string {
	return fmt.Sprintf("R%08d", id)
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// renderReceiptPDF lays the receipt out on an 80 mm roll. Removed rows are
// left out; abort and edit history stays in the JSON view.
func renderReceiptPDF(receipt checkout.ReceiptView) ([]byte, string, error) {
	code := receiptCode(receipt.ID)
	barcodePNG, err := renderCode128PNG(code, 600, 120)
	if err != nil {
		return nil, "", err
	}

	rows := make([]checkout.RowView, 0, len(receipt.Items))
	for _, row := range receipt.Items {
		if row.Action == models.ActionAdd {
			rows = append(rows, row)
		}
	}

	const (
		width  = 80.0
		margin = 4.0
		lineH  = 5.0
	)
	height := 70.0 + lineH*float64(len(rows)+len(receipt.Extras))
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetTitle("Receipt "+code, false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	title := "RECEIPT"
	if receipt.Type == models.ReceiptTypeCompensation {
		title = "COMPENSATION"
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 7, title, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 4, fmt.Sprintf("#%d  %s", receipt.ID, receipt.StatusDisplay), "", 1, "C", false, 0, "")
	printed := receipt.StartTime
	if receipt.EndTime != nil {
		printed = *receipt.EndTime
	}
	pdf.CellFormat(0, 4, printed.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	innerW := width - 2*margin
	priceW := 16.0
	codeW := 14.0
	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		pdf.CellFormat(codeW, lineH, row.Item.Code, "", 0, "L", false, 0, "")
		pdf.CellFormat(innerW-codeW-priceW, lineH, truncate(pdf, row.Item.Name, innerW-codeW-priceW), "", 0, "L", false, 0, "")
		pdf.CellFormat(priceW, lineH, formatCents(row.Item.Price), "", 1, "R", false, 0, "")
	}
	for _, extra := range receipt.Extras {
		pdf.CellFormat(innerW-priceW, lineH, extra.TypeDisplay, "", 0, "L", false, 0, "")
		pdf.CellFormat(priceW, lineH, formatCents(extra.Value), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	y := pdf.GetY()
	pdf.Line(margin, y, width-margin, y)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(innerW-priceW-6, 7, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(priceW+6, 7, formatCents(receipt.Total), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 4, fmt.Sprintf("%d items", len(rows)), "", 1, "L", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "receipt-barcode-" + code
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
	pdf.Ln(2)
	pdf.ImageOptions(imageName, margin+6, pdf.GetY(), innerW-12, 12, true, opt, 0, "")
	pdf.CellFormat(0, 4, code, "", 1, "C", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, "", err
	}
	return out.Bytes(), code, nil
}

func truncate(pdf *gofpdf.Fpdf, text string, maxWidth float64) string {
	if pdf.GetStringWidth(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > maxWidth {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
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
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, scaled, bounds.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package ticket

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/skip2/go-qrcode"
)

// GenerateLoadTicket renders a printable A4 summary of one load: header with
// a QR code of the load reference, the fleet data, and a per-bank tally
// table with totals.
func GenerateLoadTicket(view *loads.LoadView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	load := view.Load

	// QR encodes the server-side load reference so yard staff can pull the
	// record up by scanning the printout
	qrContent := fmt.Sprintf("TROZAS/%d/%s", load.ID, load.Plate)
	qrPng, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("load_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("load_qr", 165, 15, 30, 30, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(140, 8, "Resumen de Carga", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(140, 6, tr(fmt.Sprintf("Carga N° %d", load.ID)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(30, 6, "Patente:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(110, 6, load.Plate, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(30, 6, "Conductor:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(110, 6, view.DriverName, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(30, 6, "Empresa:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	empresa := view.TransportName
	if view.TransportRUT != "" {
		empresa = fmt.Sprintf("%s (%s)", empresa, view.TransportRUT)
	}
	pdf.CellFormat(110, 6, empresa, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(30, 6, "Inicio:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(110, 6, load.StartedAt.Format("02-01-2006 15:04"), "", 1, "L", false, 0, "")

	if load.ClosedAt != nil {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(30, 6, "Cierre:", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(110, 6, load.ClosedAt.Format("02-01-2006 15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	for _, bank := range view.Banks {
		pdf.SetFont("Arial", "B", 12)
		estado := "abierto"
		if bank.Closed {
			estado = "cerrado"
		}
		pdf.CellFormat(180, 7, fmt.Sprintf("Banco %d (%s) - %d trozas", bank.Bank, estado, bank.Total), "B", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(235, 235, 235)
		pdf.CellFormat(60, 6, tr("Diámetro (cm)"), "1", 0, "C", true, 0, "")
		pdf.CellFormat(60, 6, "Largo (m)", "1", 0, "C", true, 0, "")
		pdf.CellFormat(60, 6, "Cantidad", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		for _, line := range bank.Lines {
			pdf.CellFormat(60, 6, fmt.Sprintf("%d", line.DiameterCM), "1", 0, "C", false, 0, "")
			pdf.CellFormat(60, 6, fmt.Sprintf("%.2f", line.LengthM), "1", 0, "C", false, 0, "")
			pdf.CellFormat(60, 6, fmt.Sprintf("%d", line.Quantity), "1", 1, "C", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(180, 8, fmt.Sprintf("Total trozas: %d", view.CalcTotal), "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package ocr holds the typed form of an OCR-extracted invoice and the
// validation that turns an untyped payload into it.
package ocr

// Field is a header value as delivered by OCR: either a scalar or a list.
// Scalars are stored as a one-element list; an absent field is nil.
type Field []string

// First returns the first value or "".
func (f Field) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// InvoiceLine is one OCR line item. Every value is the raw string; numeric
// meaning is only applied by the transform package.
type InvoiceLine struct {
	Description string `json:"description" validate:"max=4096"`
	Quantity    string `json:"quantity" validate:"max=4096"`
	LineAmount  string `json:"line_amount" validate:"max=4096"`
	UnitPrice   string `json:"unit_price" validate:"max=4096"`
	HSNNumber   string `json:"hsn_number" validate:"max=4096"`
	IGSTRate    string `json:"igst_rate" validate:"max=4096"`
	CGSTRate    string `json:"cgst_rate" validate:"max=4096"`
	SGSTRate    string `json:"sgst_rate" validate:"max=4096"`
	UTGSTRate   string `json:"utgst_rate" validate:"max=4096"`
	PONumber    string `json:"po_number" validate:"max=4096"`
	LineNo      string `json:"line_no" validate:"max=4096"`
	Unit        string `json:"unit" validate:"max=4096"`
}

// Header carries the invoice level ("static") fields.
type Header struct {
	InvoiceDate        Field `json:"invoice_date" validate:"dive,max=4096"`
	InvoiceCurrency    Field `json:"invoice_currency" validate:"dive,max=4096"`
	Currency           Field `json:"currency" validate:"dive,max=4096"`
	SupplierCity       Field `json:"supplier_city" validate:"dive,max=4096"`
	SupplierState      Field `json:"supplier_state" validate:"dive,max=4096"`
	TotalInvoiceAmount Field `json:"total_invoice_amount" validate:"dive,max=4096"`
	InvoiceTaxAmount   Field `json:"invoice_tax_amount" validate:"dive,max=4096"`
	Subtotal           Field `json:"subtotal" validate:"dive,max=4096"`
	DeliveryLocation   Field `json:"delivery_location" validate:"dive,max=4096"`
	InvoiceInformation Field `json:"invoice_information" validate:"dive,max=4096"`
	AccountNumber      Field `json:"account_number" validate:"dive,max=4096"`
	BillToAddress      Field `json:"bill_to_address" validate:"dive,max=4096"`
	ShipToAddress      Field `json:"ship_to_address" validate:"dive,max=4096"`
	ShippingAmount     Field `json:"shipping_amount" validate:"dive,max=4096"`
	HSNCode            Field `json:"hsn_code" validate:"dive,max=4096"`
	SupplierGSTN       Field `json:"supplier_gstn" validate:"dive,max=4096"`
	LocationGSTN       Field `json:"location_gstn" validate:"dive,max=4096"`
	SupplierName       Field `json:"supplier_name" validate:"dive,max=4096"`
	IRN                Field `json:"irn" validate:"dive,max=4096"`
	InvoiceNo          Field `json:"invoice_no" validate:"dive,max=4096"`
	CGST               Field `json:"cgst" validate:"dive,max=4096"`
	SGST               Field `json:"sgst" validate:"dive,max=4096"`
	IGST               Field `json:"igst" validate:"dive,max=4096"`
	UTGST              Field `json:"utgst" validate:"dive,max=4096"`
	PONumber           Field `json:"po_number" validate:"dive,max=4096"`
	SupplierAddress    Field `json:"supplier_address" validate:"dive,max=4096"`
	ConsumerNumber     Field `json:"consumer_number" validate:"dive,max=4096"`
	CustomerAddress    Field `json:"customer_address" validate:"dive,max=4096"`
	FileName           Field `json:"file_name" validate:"dive,max=4096"`
	GSTNumber          Field `json:"gst_number" validate:"dive,max=4096"`
	DueDate            Field `json:"due_date" validate:"dive,max=4096"`
	ApplicableTax      Field `json:"applicable_tax" validate:"dive,max=4096"`
}

// Document is a validated OCR invoice. Lines keep their input order; the
// header is always present.
type Document struct {
	Lines  []InvoiceLine `json:"dynamic" validate:"dive"`
	Header *Header       `json:"static" validate:"required"`
}

func lineFields(l *InvoiceLine) map[string]*string {
	return map[string]*string{
		"description": &l.Description,
		"quantity":    &l.Quantity,
		"line_amount": &l.LineAmount,
		"unit_price":  &l.UnitPrice,
		"hsn_number":  &l.HSNNumber,
		"igst_rate":   &l.IGSTRate,
		"cgst_rate":   &l.CGSTRate,
		"sgst_rate":   &l.SGSTRate,
		"utgst_rate":  &l.UTGSTRate,
		"po_number":   &l.PONumber,
		"line_no":     &l.LineNo,
		"unit":        &l.Unit,
	}
}

var lineAliases = map[string]string{
	"Invoice Lines/Description": "description",
	"Quantity":                  "quantity",
	"Line Amount":               "line_amount",
	"Unit Price":                "unit_price",
	"HSN Number":                "hsn_number",
	"PO Number":                 "po_number",
	"IGST Rate":                 "igst_rate",
	"CGST Rate":                 "cgst_rate",
	"SGST Rate":                 "sgst_rate",
	"UTGST Rate":                "utgst_rate",
	"Unit":                      "unit",
	"Line No":                   "line_no",
}

func headerFields(h *Header) map[string]*Field {
	return map[string]*Field{
		"invoice_date":         &h.InvoiceDate,
		"invoice_currency":     &h.InvoiceCurrency,
		"currency":             &h.Currency,
		"supplier_city":        &h.SupplierCity,
		"supplier_state":       &h.SupplierState,
		"total_invoice_amount": &h.TotalInvoiceAmount,
		"invoice_tax_amount":   &h.InvoiceTaxAmount,
		"subtotal":             &h.Subtotal,
		"delivery_location":    &h.DeliveryLocation,
		"invoice_information":  &h.InvoiceInformation,
		"account_number":       &h.AccountNumber,
		"bill_to_address":      &h.BillToAddress,
		"ship_to_address":      &h.ShipToAddress,
		"shipping_amount":      &h.ShippingAmount,
		"hsn_code":             &h.HSNCode,
		"supplier_gstn":        &h.SupplierGSTN,
		"location_gstn":        &h.LocationGSTN,
		"supplier_name":        &h.SupplierName,
		"irn":                  &h.IRN,
		"invoice_no":           &h.InvoiceNo,
		"cgst":                 &h.CGST,
		"sgst":                 &h.SGST,
		"igst":                 &h.IGST,
		"utgst":                &h.UTGST,
		"po_number":            &h.PONumber,
		"supplier_address":     &h.SupplierAddress,
		"consumer_number":      &h.ConsumerNumber,
		"customer_address":     &h.CustomerAddress,
		"file_name":            &h.FileName,
		"gst_number":           &h.GSTNumber,
		"due_date":             &h.DueDate,
		"applicable_tax":       &h.ApplicableTax,
	}
}

var headerAliases = map[string]string{
	"Invoice Date":         "invoice_date",
	"Invoice Currency":     "invoice_currency",
	"Total Invoice Amount": "total_invoice_amount",
	"Invoice Tax Amount":   "invoice_tax_amount",
	"Invoice information":  "invoice_information",
	"Supplier GSTN":        "supplier_gstn",
	"Location GSTN":        "location_gstn",
	"Supplier Name":        "supplier_name",
	"Invoice No":           "invoice_no",
	"CGST":                 "cgst",
	"SGST":                 "sgst",
	"IGST":                 "igst",
	"UTGST":                "utgst",
	"PO Number":            "po_number",
	"Applicable Tax":       "applicable_tax",
}

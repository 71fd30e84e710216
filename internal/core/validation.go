package core

// validation.go checks product input before it is stored.
//
// Text fields are trimmed and NFC-normalized first, so a name typed with
// combining accents and one pasted precomposed are the same length. Lengths
// count characters, not bytes. Every failing field is reported, in field
// order, so forms can show all problems at once.

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Field paths reported in validation errors.
const (
	FieldBarcode       = "barcode"
	FieldProductName   = "productName"
	FieldRetailPrice   = "retailPrice"
	FieldCategory      = "category"
	FieldUnitOfMeasure = "unitOfMeasure"
)

// Length bounds, in characters.
const (
	BarcodeMinLen     = 8
	BarcodeMaxLen     = 14
	ProductNameMaxLen = 200
	CategoryMaxLen    = 100
	UnitMaxLen        = 20
)

// maxPriceIntDigits keeps prices inside numeric(10,2).
const maxPriceIntDigits = 8

var pricePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Path    string `json:"path"`    // Field name, e.g. "retailPrice"
	Message string `json:"message"` // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is returned by ValidateProduct when any field fails.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// ValidateProduct normalizes in and checks it against the product rules.
// It returns the normalized input, with the price rewritten to two fraction
// digits, or ValidationErrors listing every failing field.
func ValidateProduct(in ProductInput) (ProductInput, error) {
	out := ProductInput{
		Barcode:       cleanText(in.Barcode),
		ProductName:   cleanText(in.ProductName),
		RetailPrice:   strings.TrimSpace(in.RetailPrice),
		Category:      cleanText(in.Category),
		UnitOfMeasure: cleanText(in.UnitOfMeasure),
	}

	var errs ValidationErrors
	add := func(path, msg string) {
		errs = append(errs, ValidationError{Path: path, Message: msg})
	}

	switch n := utf8.RuneCountInString(out.Barcode); {
	case n < BarcodeMinLen:
		add(FieldBarcode, fmt.Sprintf("barcode must be at least %d characters", BarcodeMinLen))
	case n > BarcodeMaxLen:
		add(FieldBarcode, fmt.Sprintf("barcode must be at most %d characters", BarcodeMaxLen))
	}

	checkLength(out.ProductName, ProductNameMaxLen, "product name", FieldProductName, add)

	if price, err := NormalizePrice(out.RetailPrice); err != nil {
		add(FieldRetailPrice, err.Error())
	} else {
		out.RetailPrice = price
	}

	checkLength(out.Category, CategoryMaxLen, "category", FieldCategory, add)
	checkLength(out.UnitOfMeasure, UnitMaxLen, "unit of measure", FieldUnitOfMeasure, add)

	if len(errs) > 0 {
		return out, errs
	}
	return out, nil
}

func checkLength(value string, max int, label, path string, add func(string, string)) {
	switch n := utf8.RuneCountInString(value); {
	case n == 0:
		add(path, label+" is required")
	case n > max:
		add(path, fmt.Sprintf("%s is too long (max %d characters)", label, max))
	}
}

// NormalizePrice validates a decimal price and pads it to two fraction
// digits: "10" becomes "10.00", "0.5" becomes "0.50".
func NormalizePrice(s string) (string, error) {
	if !pricePattern.MatchString(s) {
		return "", fmt.Errorf("price must be a number with at most 2 decimal places")
	}

	intPart, frac, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac += strings.Repeat("0", 2-len(frac))

	if intPart == "0" && frac == "00" {
		return "", fmt.Errorf("price must be greater than zero")
	}
	if len(intPart) > maxPriceIntDigits {
		return "", fmt.Errorf("price is too large")
	}
	return intPart + "." + frac, nil
}

// cleanText trims surrounding whitespace and applies NFC normalization.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

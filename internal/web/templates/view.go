package templates

import (
	"slices"
	"strconv"

	"github.com/JonMunkholm/shelfscan/internal/core"
)

// DictationLang is the speech recognition language of the dictation buttons.
const DictationLang = "ru-RU"

// ProductFormView is the state of the data-entry form.
type ProductFormView struct {
	Values  core.ProductInput
	Errors  map[string]string // by field path
	Catalog core.Catalog
	Alert   *core.UserMessage
}

type formField struct {
	Name  string
	Label string
	Value string
	Error string
}

func (v ProductFormView) field(name, label, value string) formField {
	return formField{Name: name, Label: label, Value: value, Error: v.Errors[name]}
}

func recordCount(n int) string {
	if n == 1 {
		return "1 record"
	}
	return strconv.Itoa(n) + " records"
}

// withCurrent prepends value to options when it is set but not in the
// catalog, so a resubmitted form keeps what the user sent.
func withCurrent(options []string, value string) []string {
	if value == "" || slices.Contains(options, value) {
		return options
	}
	return append([]string{value}, options...)
}

package core

// Catalog holds the option lists offered by the data-entry form. Stored
// records are not restricted to these values.
type Catalog struct {
	Categories []string `json:"categories"`
	Units      []string `json:"units"`
}

var defaultCategories = []string{
	"Молочные продукты",
	"Кондитерские изделия",
	"Напитки",
	"Хлебобулочные изделия",
	"Мясные продукты",
	"Колбасные изделия",
	"Рыба и морепродукты",
	"Овощи и фрукты",
	"Бакалея",
	"Консервы",
	"Замороженные продукты",
	"Алкогольные напитки",
	"Товары для дома",
	"Косметика и гигиена",
	"Другое",
}

var defaultUnits = []string{"шт.", "кг", "г", "л", "мл", "упак.", "м"}

// DefaultCatalog returns a copy of the built-in option lists.
func DefaultCatalog() Catalog {
	return Catalog{
		Categories: append([]string(nil), defaultCategories...),
		Units:      append([]string(nil), defaultUnits...),
	}
}

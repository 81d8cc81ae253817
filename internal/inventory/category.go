package inventory

import "strings"

// Category names used by the seed data and by InferCategory.
const (
	CategoryLabEquipment = "Lab Equipment"
	CategoryStationery   = "Stationery"
	CategoryElectronics  = "Electronics"
	CategoryKits         = "Kits & Sets"
	CategoryTools        = "Tools"
	CategoryGeneral      = "General Supplies"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryLabEquipment, []string{"microscope", "beaker", "flask", "test tube", "bunsen", "lab", "equipment"}},
	{CategoryStationery, []string{"pencil", "pen", "marker", "paper", "notebook", "eraser"}},
	{CategoryElectronics, []string{"arduino", "sensor", "circuit", "battery", "wire", "led", "resistor"}},
	{CategoryKits, []string{"kit", "set", "box", "pack"}},
}

// InferCategory guesses a category from an item name. First match wins.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryGeneral
}

package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedItems is the starter inventory of the centre. Five entries sit at or
// below their threshold so low-stock alerts have something to show.
func SeedItems() []Item {
	return []Item{
		{Name: "Pencils", Category: CategoryStationery, Description: "Standard HB pencils for general use", Quantity: 150, Unit: "pieces", MinQuantity: 50, Location: "Storage Room A"},
		{Name: "Markers", Category: CategoryStationery, Description: "Dry-erase markers for whiteboards", Quantity: 8, Unit: "boxes", MinQuantity: 15, Location: "Storage Room A"},
		{Name: "Notebooks", Category: CategoryStationery, Description: "Lined composition notebooks", Quantity: 45, Unit: "units", MinQuantity: 20, Location: "Storage Room A"},
		{Name: "Beakers (250ml)", Category: CategoryLabEquipment, Description: "Glass beakers for chemistry experiments", Quantity: 25, Unit: "pieces", MinQuantity: 30, Location: "Chemistry Lab Cabinet"},
		{Name: "Test Tubes", Category: CategoryLabEquipment, Description: "Borosilicate glass test tubes", Quantity: 100, Unit: "pieces", MinQuantity: 50, Location: "Chemistry Lab Cabinet"},
		{Name: "Microscopes", Category: CategoryLabEquipment, Description: "Student-grade compound microscopes", Quantity: 12, Unit: "units", MinQuantity: 15, Location: "Biology Lab"},
		{Name: "Safety Goggles", Category: CategoryLabEquipment, Description: "Protective eyewear for lab work", Quantity: 35, Unit: "pairs", MinQuantity: 40, Location: "Lab Entrance"},
		{Name: "Chemistry Sets", Category: CategoryLabEquipment, Description: "Complete chemistry experiment kits", Quantity: 8, Unit: "sets", MinQuantity: 5, Location: "Chemistry Lab"},
		{Name: "Arduino Uno Kits", Category: CategoryElectronics, Description: "Arduino microcontroller starter kits", Quantity: 15, Unit: "kits", MinQuantity: 10, Location: "Robotics Lab"},
		{Name: "Raspberry Pi 4", Category: CategoryElectronics, Description: "Single-board computers for projects", Quantity: 10, Unit: "units", MinQuantity: 8, Location: "Computer Lab"},
		{Name: "Breadboards", Category: CategoryElectronics, Description: "Solderless breadboards for prototyping", Quantity: 30, Unit: "pieces", MinQuantity: 15, Location: "Robotics Lab"},
		{Name: "LED Assortment", Category: CategoryElectronics, Description: "Various colored LEDs", Quantity: 200, Unit: "pieces", MinQuantity: 100, Location: "Electronics Storage"},
		{Name: "Jumper Wires", Category: CategoryElectronics, Description: "Male-to-male jumper wires", Quantity: 5, Unit: "packs", MinQuantity: 10, Location: "Electronics Storage"},
		{Name: "Screwdriver Sets", Category: CategoryTools, Description: "Multi-bit screwdriver sets", Quantity: 8, Unit: "sets", MinQuantity: 5, Location: "Tool Cabinet"},
		{Name: "Multimeters", Category: CategoryTools, Description: "Digital multimeters for electrical testing", Quantity: 12, Unit: "units", MinQuantity: 10, Location: "Electronics Lab"},
		{Name: "Hot Glue Guns", Category: CategoryTools, Description: "Hot glue guns with glue sticks", Quantity: 6, Unit: "units", MinQuantity: 4, Location: "Makerspace"},
	}
}

// SeedSuppliers lists the known vendors. ItemName is matched against item
// names by substring, so "Arduino" covers "Arduino Uno Kits".
func SeedSuppliers() []Supplier {
	return []Supplier{
		{Name: "School Supply Co", ItemName: "Pencils", ContactInfo: "orders@schoolsupply.com", OrderURL: "https://schoolsupply.com/products/pencils", PricePerUnit: 0.25, LeadTimeDays: 3, Notes: "Bulk discounts available for orders over 500"},
		{Name: "Lab Pro Direct", ItemName: "Beakers", ContactInfo: "sales@labpro.com", OrderURL: "https://labpro.com/glassware/beakers-250ml", PricePerUnit: 4.99, LeadTimeDays: 5, Notes: "Borosilicate glass, autoclavable"},
		{Name: "Lab Pro Direct", ItemName: "Test Tubes", ContactInfo: "sales@labpro.com", OrderURL: "https://labpro.com/glassware/test-tubes", PricePerUnit: 0.75, LeadTimeDays: 5, Notes: "Sold in packs of 50"},
		{Name: "Lab Pro Direct", ItemName: "Safety Goggles", ContactInfo: "sales@labpro.com", OrderURL: "https://labpro.com/safety/goggles", PricePerUnit: 3.50, LeadTimeDays: 5, Notes: "ANSI Z87.1 certified"},
		{Name: "TechEd Supplies", ItemName: "Arduino", ContactInfo: "info@techedsupplies.com", OrderURL: "https://techedsupplies.com/arduino-uno-starter", PricePerUnit: 35.99, LeadTimeDays: 7, Notes: "Includes USB cable and starter components"},
		{Name: "Amazon Business", ItemName: "Arduino", ContactInfo: "business@amazon.com", OrderURL: "https://amazon.com/business/arduino-kits", PricePerUnit: 32.99, LeadTimeDays: 2, Notes: "Prime shipping available"},
		{Name: "TechEd Supplies", ItemName: "Raspberry Pi", ContactInfo: "info@techedsupplies.com", OrderURL: "https://techedsupplies.com/raspberry-pi-4", PricePerUnit: 55.00, LeadTimeDays: 7, Notes: "8GB RAM model"},
		{Name: "EduMart", ItemName: "Markers", ContactInfo: "orders@edumart.com", OrderURL: "https://edumart.com/markers-dry-erase", PricePerUnit: 8.99, LeadTimeDays: 3, Notes: "12-pack assorted colors"},
		{Name: "Science Direct", ItemName: "Microscopes", ContactInfo: "sales@sciencedirect.com", OrderURL: "https://sciencedirect.com/microscopes/student", PricePerUnit: 149.99, LeadTimeDays: 10, Notes: "40x-1000x magnification, LED illumination"},
		{Name: "Maker Supply Hub", ItemName: "Jumper Wires", ContactInfo: "hello@makersupply.com", OrderURL: "https://makersupply.com/jumper-wires", PricePerUnit: 5.99, LeadTimeDays: 4, Notes: "Pack of 100 wires, 20cm length"},
	}
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Items     int
	Suppliers int
	Skipped   bool
}

// Seed loads the starter data set. It is a no-op when any item exists.
func Seed(ctx context.Context, db *gorm.DB, logger *zap.Logger) (SeedResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&Item{}).Count(&existing).Error; err != nil {
		return SeedResult{}, fmt.Errorf("count items: %w", err)
	}
	if existing > 0 {
		logger.Info("inventory already seeded, skipping", zap.Int64("items", existing))
		return SeedResult{Skipped: true}, nil
	}

	items := SeedItems()
	suppliers := SeedSuppliers()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert items: %w", err)
		}

		history := make([]Transaction, 0, len(items))
		for _, item := range items {
			history = append(history, Transaction{
				ItemID:         item.ID,
				Type:           TransactionAdd,
				QuantityChange: item.Quantity,
				QuantityAfter:  item.Quantity,
				Reason:         "Initial inventory setup",
			})
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}

		if err := tx.Create(&suppliers).Error; err != nil {
			return fmt.Errorf("insert suppliers: %w", err)
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	logger.Info("inventory seeded",
		zap.Int("items", len(items)),
		zap.Int("suppliers", len(suppliers)),
	)
	return SeedResult{Items: len(items), Suppliers: len(suppliers)}, nil
}

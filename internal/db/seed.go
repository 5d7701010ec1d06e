package db

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

// Fixtures is the YAML layout accepted by the seed command.
type Fixtures struct {
	WorkOrders []models.WorkOrder          `yaml:"workOrders"`
	History    []models.MaintenanceHistory `yaml:"maintenanceHistory"`
	Windows    []models.MaintenanceWindow  `yaml:"maintenanceWindows"`
	Inventory  []models.InventoryItem      `yaml:"inventory"`
	Suppliers  []models.Supplier           `yaml:"suppliers"`
}

// SeedCounts reports how many rows of each kind were written.
type SeedCounts struct {
	WorkOrders int
	History    int
	Windows    int
	Inventory  int
	Suppliers  int
}

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return &f, nil
}

// Seed writes all fixtures into the store. Work orders without a status are
// created as "Created".
func Seed(ctx context.Context, s Store, f *Fixtures) (SeedCounts, error) {
	var c SeedCounts
	for i := range f.WorkOrders {
		wo := f.WorkOrders[i]
		if wo.Status == "" {
			wo.Status = models.StatusCreated
		}
		if !wo.Status.Valid() {
			return c, fmt.Errorf("work order %s: unknown status %q", wo.ID, wo.Status)
		}
		if err := s.UpsertWorkOrder(ctx, &wo); err != nil {
			return c, err
		}
		c.WorkOrders++
	}
	for i := range f.History {
		if err := s.AppendHistory(ctx, &f.History[i]); err != nil {
			return c, err
		}
		c.History++
	}
	for i := range f.Windows {
		w := f.Windows[i]
		if !w.EndTime.After(w.StartTime) {
			return c, fmt.Errorf("window %s: end must be after start", w.ID)
		}
		if err := s.UpsertWindow(ctx, &w); err != nil {
			return c, err
		}
		c.Windows++
	}
	for i := range f.Inventory {
		if err := s.UpsertInventoryItem(ctx, &f.Inventory[i]); err != nil {
			return c, err
		}
		c.Inventory++
	}
	for i := range f.Suppliers {
		if err := s.UpsertSupplier(ctx, &f.Suppliers[i]); err != nil {
			return c, err
		}
		c.Suppliers++
	}
	return c, nil
}

package registry

import (
	"sync"

	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/units"
)

//nolint:gochecknoglobals // process-wide catalog, seeded once
var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the process-wide standard catalog, seeding the
// shared cross-manifest descriptors on first use. The catalog is
// append-only afterwards; additions go through RegisterStandard at
// startup, never from manifest code.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = NewCatalog()
		seedStandards(defaultCatalog)
	})

	return defaultCatalog
}

type standardSeed struct {
	name      string
	valueType models.ValueType
	unit      models.Unit
}

func seedStandards(c *Catalog) {
	seeds := []standardSeed{
		{"temperature", models.TypeDouble, units.Celsius},
		{"minTemperature", models.TypeDouble, units.Celsius},
		{"maxTemperature", models.TypeDouble, units.Celsius},
		{"humidity", models.TypeDouble, ""},
		{"pressure", models.TypeDouble, units.Kilopascals},
		{"altitude", models.TypeDouble, units.Meters},
		{"speed", models.TypeDouble, units.MetersPerSecond},
		{"distance", models.TypeDouble, units.Meters},
		{"weight", models.TypeDouble, units.Kilograms},
		{"uptime", models.TypeLong, units.Seconds},
		{"batteryLevel", models.TypeInteger, ""},
		{"signalStrength", models.TypeInteger, ""},
		{"latitude", models.TypeDouble, ""},
		{"longitude", models.TypeDouble, ""},
		{"status", models.TypeString, ""},
		{"firmwareVersion", models.TypeString, ""},
		{"serialNumber", models.TypeString, ""},
		{"powerOn", models.TypeBoolean, ""},
	}

	for _, s := range seeds {
		// Seeds are static and validated by tests; a failure here is a
		// programming error.
		if _, err := c.RegisterStandard(s.name, s.valueType, s.unit); err != nil {
			panic(err)
		}
	}
}

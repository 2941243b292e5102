/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package units defines the supported measurement units, grouped into
// physical quantity families, and converts numeric values between units
// of the same family. Conversions are affine (scale plus offset through
// a per-family base unit) in double precision.
package units

import (
	"errors"
	"fmt"
	"math"

	"github.com/carverauto/fieldpipe/pkg/models"
)

var (
	// ErrIncompatibleUnit is returned when the source and target units
	// belong to different quantity families.
	ErrIncompatibleUnit = errors.New("units belong to different quantity families")

	// ErrUnsupportedType is returned when a conversion is requested for
	// a value type that does not carry units (String, Boolean) or is
	// not a supported scalar type at all.
	ErrUnsupportedType = errors.New("value type does not support unit conversion")

	// ErrUnknownUnit is returned for units absent from the catalog.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Quantity names a physical quantity family. Units convert only within
// their own family.
type Quantity string

const (
	QuantityTemperature Quantity = "temperature"
	QuantityDistance    Quantity = "distance"
	QuantityMass        Quantity = "mass"
	QuantityDuration    Quantity = "duration"
	QuantityPressure    Quantity = "pressure"
	QuantitySpeed       Quantity = "speed"
)

// Units known to the platform. Manifest authors reference these names;
// anything else fails ErrUnknownUnit at field construction time.
const (
	Celsius    models.Unit = "celsius"
	Fahrenheit models.Unit = "fahrenheit"
	Kelvin     models.Unit = "kelvin"

	Millimeters models.Unit = "millimeters"
	Centimeters models.Unit = "centimeters"
	Meters      models.Unit = "meters"
	Kilometers  models.Unit = "kilometers"
	Inches      models.Unit = "inches"
	Feet        models.Unit = "feet"
	Miles       models.Unit = "miles"

	Grams     models.Unit = "grams"
	Kilograms models.Unit = "kilograms"
	Ounces    models.Unit = "ounces"
	Pounds    models.Unit = "pounds"

	Milliseconds models.Unit = "milliseconds"
	Seconds      models.Unit = "seconds"
	Minutes      models.Unit = "minutes"
	Hours        models.Unit = "hours"

	Pascals     models.Unit = "pascals"
	Kilopascals models.Unit = "kilopascals"
	Bar         models.Unit = "bar"
	PSI         models.Unit = "psi"

	MetersPerSecond   models.Unit = "meters_per_second"
	KilometersPerHour models.Unit = "kilometers_per_hour"
	MilesPerHour      models.Unit = "miles_per_hour"
	Knots             models.Unit = "knots"
)

// affine maps a unit into its family base unit: base = value*scale + offset.
type affine struct {
	quantity Quantity
	scale    float64
	offset   float64
}

//nolint:gochecknoglobals // catalog is immutable after init
var catalog = map[models.Unit]affine{
	Celsius:    {QuantityTemperature, 1, 0},
	Fahrenheit: {QuantityTemperature, 5.0 / 9.0, -160.0 / 9.0},
	Kelvin:     {QuantityTemperature, 1, -273.15},

	Millimeters: {QuantityDistance, 0.001, 0},
	Centimeters: {QuantityDistance, 0.01, 0},
	Meters:      {QuantityDistance, 1, 0},
	Kilometers:  {QuantityDistance, 1000, 0},
	Inches:      {QuantityDistance, 0.0254, 0},
	Feet:        {QuantityDistance, 0.3048, 0},
	Miles:       {QuantityDistance, 1609.344, 0},

	Grams:     {QuantityMass, 0.001, 0},
	Kilograms: {QuantityMass, 1, 0},
	Ounces:    {QuantityMass, 0.028349523125, 0},
	Pounds:    {QuantityMass, 0.45359237, 0},

	Milliseconds: {QuantityDuration, 0.001, 0},
	Seconds:      {QuantityDuration, 1, 0},
	Minutes:      {QuantityDuration, 60, 0},
	Hours:        {QuantityDuration, 3600, 0},

	Pascals:     {QuantityPressure, 1, 0},
	Kilopascals: {QuantityPressure, 1000, 0},
	Bar:         {QuantityPressure, 100000, 0},
	PSI:         {QuantityPressure, 6894.757293168, 0},

	MetersPerSecond:   {QuantitySpeed, 1, 0},
	KilometersPerHour: {QuantitySpeed, 1.0 / 3.6, 0},
	MilesPerHour:      {QuantitySpeed, 0.44704, 0},
	Knots:             {QuantitySpeed, 1852.0 / 3600.0, 0},
}

// Known reports whether u is in the unit catalog.
func Known(u models.Unit) bool {
	_, ok := catalog[u]
	return ok
}

// QuantityOf returns the quantity family of a unit.
func QuantityOf(u models.Unit) (Quantity, error) {
	c, ok := catalog[u]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}

	return c.quantity, nil
}

// Compatible reports whether two units belong to the same family.
func Compatible(a, b models.Unit) bool {
	qa, errA := QuantityOf(a)
	qb, errB := QuantityOf(b)

	return errA == nil && errB == nil && qa == qb
}

// ConvertFloat converts a raw double between two units of the same
// quantity family.
func ConvertFloat(value float64, from, to models.Unit) (float64, error) {
	if from == to {
		return value, nil
	}

	fc, ok := catalog[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}

	tc, ok := catalog[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}

	if fc.quantity != tc.quantity {
		return 0, fmt.Errorf("%w: %q is %s, %q is %s",
			ErrIncompatibleUnit, from, fc.quantity, to, tc.quantity)
	}

	base := value*fc.scale + fc.offset

	return (base - tc.offset) / tc.scale, nil
}

// Convert converts a typed value between two units of the same quantity
// family, preserving the value's scalar type. Integer-typed results
// round half away from zero; a rounded result outside the type's range
// is rejected rather than wrapped. String and Boolean values are
// rejected with ErrUnsupportedType.
func Convert(value models.TypedValue, from, to models.Unit) (models.TypedValue, error) {
	if !value.Type().Valid() || !value.Type().Numeric() {
		return models.TypedValue{}, fmt.Errorf("%w: %s", ErrUnsupportedType, value.Type())
	}

	if from == to {
		return value, nil
	}

	raw, _ := value.Float64()

	converted, err := ConvertFloat(raw, from, to)
	if err != nil {
		return models.TypedValue{}, err
	}

	switch value.Type() {
	case models.TypeDouble:
		return models.DoubleValue(converted), nil
	case models.TypeFloat:
		return models.FloatValue(float32(converted)), nil
	case models.TypeInteger:
		rounded := math.Round(converted)
		if rounded < math.MinInt32 || rounded > math.MaxInt32 {
			return models.TypedValue{}, fmt.Errorf("%w: %g %s overflows Integer as %s",
				ErrUnsupportedType, raw, from, to)
		}

		return models.IntegerValue(int32(rounded)), nil
	case models.TypeLong:
		rounded := math.Round(converted)
		// float64(MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if rounded < math.MinInt64 || rounded >= math.MaxInt64 {
			return models.TypedValue{}, fmt.Errorf("%w: %g %s overflows Long as %s",
				ErrUnsupportedType, raw, from, to)
		}

		return models.LongValue(int64(rounded)), nil
	default:
		return models.TypedValue{}, fmt.Errorf("%w: %s", ErrUnsupportedType, value.Type())
	}
}

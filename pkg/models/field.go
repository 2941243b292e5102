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

// Package models defines the shared data model for the fieldpipe
// normalization engine: typed values, field descriptors, execution
// outcomes and certification reports.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ValueType enumerates the scalar types a Field value may carry.
type ValueType string

const (
	TypeBoolean ValueType = "Boolean"
	TypeDouble  ValueType = "Double"
	TypeFloat   ValueType = "Float"
	TypeInteger ValueType = "Integer"
	TypeLong    ValueType = "Long"
	TypeString  ValueType = "String"
)

// Valid reports whether t is one of the supported scalar types.
func (t ValueType) Valid() bool {
	switch t {
	case TypeBoolean, TypeDouble, TypeFloat, TypeInteger, TypeLong, TypeString:
		return true
	default:
		return false
	}
}

// Numeric reports whether values of this type participate in unit
// conversion. String and Boolean are unit-less by definition.
func (t ValueType) Numeric() bool {
	switch t {
	case TypeDouble, TypeFloat, TypeInteger, TypeLong:
		return true
	default:
		return false
	}
}

// Unit names a measurement unit. The empty Unit means dimensionless.
// The set of known units and their quantity families lives in pkg/units.
type Unit string

// ErrValueTypeMismatch is returned when a Field is constructed with a
// value whose runtime type differs from its descriptor's declared type.
var ErrValueTypeMismatch = errors.New("value type does not match descriptor")

// TypedValue is a closed sum over the supported scalar kinds. The zero
// TypedValue is invalid; values are built through the typed constructors
// and never mutated.
type TypedValue struct {
	kind ValueType
	b    bool
	f    float64
	i    int64
	s    string
}

func BooleanValue(v bool) TypedValue { return TypedValue{kind: TypeBoolean, b: v} }

func DoubleValue(v float64) TypedValue { return TypedValue{kind: TypeDouble, f: v} }

// FloatValue stores v at float32 precision.
func FloatValue(v float32) TypedValue { return TypedValue{kind: TypeFloat, f: float64(v)} }

func IntegerValue(v int32) TypedValue { return TypedValue{kind: TypeInteger, i: int64(v)} }

func LongValue(v int64) TypedValue { return TypedValue{kind: TypeLong, i: v} }

func StringValue(v string) TypedValue { return TypedValue{kind: TypeString, s: v} }

// Type returns the scalar kind of the value.
func (v TypedValue) Type() ValueType { return v.kind }

func (v TypedValue) Bool() bool { return v.b }

func (v TypedValue) Double() float64 { return v.f }

func (v TypedValue) Float() float32 { return float32(v.f) }

func (v TypedValue) Integer() int32 { return int32(v.i) }

func (v TypedValue) Long() int64 { return v.i }

func (v TypedValue) Str() string { return v.s }

// Float64 returns the numeric value widened to float64. The second
// return is false for String and Boolean values.
func (v TypedValue) Float64() (float64, bool) {
	switch v.kind {
	case TypeDouble, TypeFloat:
		return v.f, true
	case TypeInteger, TypeLong:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Interface returns the value as its natural Go type.
func (v TypedValue) Interface() interface{} {
	switch v.kind {
	case TypeBoolean:
		return v.b
	case TypeDouble:
		return v.f
	case TypeFloat:
		return float32(v.f)
	case TypeInteger:
		return int32(v.i)
	case TypeLong:
		return v.i
	case TypeString:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v TypedValue) Equal(o TypedValue) bool {
	return v.kind == o.kind && v.b == o.b && v.f == o.f && v.i == o.i && v.s == o.s
}

func (v TypedValue) String() string {
	switch v.kind {
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeDouble, TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeInteger, TypeLong:
		return strconv.FormatInt(v.i, 10)
	case TypeString:
		return v.s
	default:
		return ""
	}
}

// MarshalJSON encodes the bare value, not the wrapper.
func (v TypedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// FieldDescriptor is the immutable identity of a schema slot a manifest
// can emit. Two descriptors with the same name declared by one manifest
// must be identical in every other attribute.
type FieldDescriptor struct {
	Name       string    `json:"name"`
	ValueType  ValueType `json:"value_type"`
	Unit       Unit      `json:"unit,omitempty"`
	IsStandard bool      `json:"is_standard"`
	AliasOf    string    `json:"alias_of,omitempty"`
}

// Equal reports attribute-for-attribute equality.
func (d FieldDescriptor) Equal(o FieldDescriptor) bool {
	return d == o
}

// CanonicalName is the name downstream consumers key on: the aliased
// standard descriptor's name when this is an alias, the descriptor's own
// name otherwise.
func (d FieldDescriptor) CanonicalName() string {
	if d.AliasOf != "" {
		return d.AliasOf
	}

	return d.Name
}

// Field is one (descriptor, value) pair produced by a manifest run.
// Fields are constructed through NewField and never mutated.
type Field struct {
	Descriptor FieldDescriptor `json:"descriptor"`
	Value      TypedValue      `json:"value"`
}

// NewField builds a well-formed Field, rejecting values whose runtime
// type differs from the descriptor's declared type. Unit conversion must
// already have happened; NewField does not convert.
func NewField(descriptor FieldDescriptor, value TypedValue) (Field, error) {
	if value.Type() != descriptor.ValueType {
		return Field{}, fmt.Errorf("%w: descriptor %q wants %s, got %s",
			ErrValueTypeMismatch, descriptor.Name, descriptor.ValueType, value.Type())
	}

	return Field{Descriptor: descriptor, Value: value}, nil
}

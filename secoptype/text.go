// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secoptype

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/secop-io/secopd/secoperr"
)

// StringType is the SECoP `string` type: {minchars, maxchars, isUTF8}; no
// embedded NUL (§3).
type StringType struct {
	MinChars, MaxChars int
	IsUTF8             bool
}

var _ DataType = (*StringType)(nil)

func NewStringType() *StringType { return &StringType{MaxChars: 1<<31 - 1} }

// TextType is StringType with the multiline-text intent flag set on the
// wire (frappy.datatypes.TextType extends StringType).
type TextType struct {
	StringType
}

var _ DataType = (*TextType)(nil)

func (t *StringType) Validate(v any) (any, secoperr.Error) {
	s, ok := v.(string)
	if !ok {
		return nil, secoperr.WrongType(fmt.Sprintf("%v is not a string", v))
	}
	if strings.ContainsRune(s, 0) {
		return nil, secoperr.WrongType("string must not contain NUL")
	}
	if t.IsUTF8 && !utf8.ValidString(s) {
		return nil, secoperr.WrongType("string is not valid UTF-8")
	}
	n := utf8.RuneCountInString(s)
	if n < t.MinChars || n > t.MaxChars {
		return nil, secoperr.RangeError(fmt.Sprintf("length %d not in [%d, %d]", n, t.MinChars, t.MaxChars))
	}
	return s, nil
}

func (t *StringType) ExportValue(internal any) any { return internal }

func (t *StringType) ImportValue(wire any) (any, secoperr.Error) { return t.Validate(wire) }

func (t *StringType) FormatValue(internal any, _ string) string {
	s, _ := internal.(string)
	return fmt.Sprintf("%q", s)
}

func (t *StringType) FromString(s string) (any, secoperr.Error) { return t.Validate(s) }

func (t *StringType) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*StringType)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a string type")
	}
	if o.MinChars > t.MinChars || o.MaxChars < t.MaxChars {
		return secoperr.BadValue("incompatible length range")
	}
	if t.IsUTF8 && !o.IsUTF8 {
		return secoperr.BadValue("incompatible utf8 requirement")
	}
	return nil
}

func (t *StringType) Default() any { return "" }

func (t *StringType) Datainfo() map[string]any {
	m := map[string]any{"type": "string"}
	if t.MinChars != 0 {
		m["minchars"] = t.MinChars
	}
	if t.MaxChars != 0 && t.MaxChars != 1<<31-1 {
		m["maxchars"] = t.MaxChars
	}
	if t.IsUTF8 {
		m["isUTF8"] = true
	}
	return m
}

func (t *StringType) SetMainUnit(string) {}

func (t *TextType) Datainfo() map[string]any {
	m := t.StringType.Datainfo()
	m["type"] = "text"
	return m
}

// BlobType is the SECoP `blob` type: {minbytes, maxbytes}; wire encoding
// is base64 (§3).
type BlobType struct {
	MinBytes, MaxBytes int
}

var _ DataType = (*BlobType)(nil)

func NewBlobType() *BlobType { return &BlobType{MaxBytes: 1<<31 - 1} }

func (t *BlobType) Validate(v any) (any, secoperr.Error) {
	b, ok := v.([]byte)
	if !ok {
		if s, ok := v.(string); ok {
			b = []byte(s)
		} else {
			return nil, secoperr.WrongType(fmt.Sprintf("%v is not bytes", v))
		}
	}
	if len(b) < t.MinBytes || len(b) > t.MaxBytes {
		return nil, secoperr.RangeError(fmt.Sprintf("length %d not in [%d, %d]", len(b), t.MinBytes, t.MaxBytes))
	}
	return b, nil
}

func (t *BlobType) ExportValue(internal any) any {
	b, _ := internal.([]byte)
	return base64.StdEncoding.EncodeToString(b)
}

func (t *BlobType) ImportValue(wire any) (any, secoperr.Error) {
	s, ok := wire.(string)
	if !ok {
		return nil, secoperr.WrongType("blob wire value must be base64 string")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, secoperr.WrongType("invalid base64: " + err.Error())
	}
	return t.Validate(b)
}

func (t *BlobType) FormatValue(internal any, _ string) string {
	b, _ := internal.([]byte)
	return fmt.Sprintf("<blob, %d bytes>", len(b))
}

func (t *BlobType) FromString(s string) (any, secoperr.Error) { return t.Validate([]byte(s)) }

func (t *BlobType) Compatible(other DataType) secoperr.Error {
	o, ok := other.(*BlobType)
	if !ok {
		if _, ok := other.(*ValueType); ok {
			return nil
		}
		return secoperr.BadValue("not a blob type")
	}
	if o.MinBytes > t.MinBytes || o.MaxBytes < t.MaxBytes {
		return secoperr.BadValue("incompatible length range")
	}
	return nil
}

func (t *BlobType) Default() any { return []byte{} }

func (t *BlobType) Datainfo() map[string]any {
	m := map[string]any{"type": "blob"}
	if t.MinBytes != 0 {
		m["minbytes"] = t.MinBytes
	}
	if t.MaxBytes != 0 && t.MaxBytes != 1<<31-1 {
		m["maxbytes"] = t.MaxBytes
	}
	return m
}

func (t *BlobType) SetMainUnit(string) {}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EditField is the closed set of asset fields that edits and return
// overrides may touch.
type EditField string

const (
	FieldCategory       EditField = "category_id"
	FieldName           EditField = "name"
	FieldSpecification  EditField = "specification"
	FieldStatus         EditField = "status"
	FieldMACAddress     EditField = "mac_address"
	FieldIPAddress      EditField = "ip_address"
	FieldOfficeLocation EditField = "office_location"
	FieldFloor          EditField = "floor"
	FieldSeatNumber     EditField = "seat_number"
	FieldHolder         EditField = "holder_id"
	FieldRemark         EditField = "remark"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindRequiredText
	kindRef
	kindRequiredRef
	kindStatus
)

type fieldMeta struct {
	kind  fieldKind
	label string
	order int
}

var fieldTable = map[EditField]fieldMeta{
	FieldCategory:       {kindRequiredRef, "category", 0},
	FieldName:           {kindRequiredText, "name", 1},
	FieldSpecification:  {kindText, "specification", 2},
	FieldStatus:         {kindStatus, "status", 3},
	FieldMACAddress:     {kindText, "MAC address", 4},
	FieldIPAddress:      {kindText, "IP address", 5},
	FieldOfficeLocation: {kindText, "office location", 6},
	FieldFloor:          {kindText, "floor", 7},
	FieldSeatNumber:     {kindText, "seat number", 8},
	FieldHolder:         {kindRef, "holder", 9},
	FieldRemark:         {kindText, "remark", 10},
}

// ReturnOverrideFields are the location fields a return request may propose.
var ReturnOverrideFields = []EditField{
	FieldMACAddress,
	FieldIPAddress,
	FieldOfficeLocation,
	FieldFloor,
	FieldSeatNumber,
	FieldRemark,
}

func (f EditField) Valid() bool {
	_, ok := fieldTable[f]
	return ok
}

func (f EditField) Label() string {
	if meta, ok := fieldTable[f]; ok {
		return meta.label
	}
	return string(f)
}

func (f EditField) IsRef() bool {
	k := fieldTable[f].kind
	return k == kindRef || k == kindRequiredRef
}

func (f EditField) jsonValue(v *string) any {
	if v == nil {
		return nil
	}
	if f.IsRef() {
		if n, err := strconv.ParseUint(*v, 10, 64); err == nil {
			return n
		}
	}
	return *v
}

// Normalize trims v and maps empty strings to nil so "", "  " and null
// compare equal.
func Normalize(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func SameValue(a, b *string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EditSet is a sparse map of proposed field values. A nil value is an
// explicit clear; an absent key proposes no change.
type EditSet map[EditField]*string

// ParseEditSet validates raw JSON values against the field table.
func ParseEditSet(raw map[string]json.RawMessage) (EditSet, error) {
	out := make(EditSet, len(raw))
	for key, msg := range raw {
		f := EditField(key)
		meta, ok := fieldTable[f]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		v, err := decodeValue(f, meta.kind, msg)
		if err != nil {
			return nil, err
		}
		out[f] = v
	}
	return out, nil
}

func decodeValue(f EditField, kind fieldKind, msg json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(msg)
	isNull := len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))

	switch kind {
	case kindRef, kindRequiredRef:
		if isNull {
			if kind == kindRequiredRef {
				return nil, fmt.Errorf("%s cannot be null", f)
			}
			return nil, nil
		}
		var n uint64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			var s string
			if json.Unmarshal(trimmed, &s) != nil {
				return nil, fmt.Errorf("%s must be an id", f)
			}
			if n, err = strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
				return nil, fmt.Errorf("%s must be an id", f)
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("%s must be a positive id", f)
		}
		s := strconv.FormatUint(n, 10)
		return &s, nil
	default:
		if isNull {
			if kind != kindText {
				return nil, fmt.Errorf("%s cannot be null", f)
			}
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%s must be a string", f)
		}
		s = strings.TrimSpace(s)
		switch kind {
		case kindRequiredText:
			if s == "" {
				return nil, fmt.Errorf("%s cannot be empty", f)
			}
		case kindStatus:
			if !AssetStatus(s).Valid() {
				return nil, fmt.Errorf("invalid status %q", s)
			}
		}
		return &s, nil
	}
}

// Fields returns the keys in a stable display order.
func (s EditSet) Fields() []EditField {
	out := make([]EditField, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return fieldTable[out[i]].order < fieldTable[out[j]].order
	})
	return out
}

func (s EditSet) Has(f EditField) bool {
	_, ok := s[f]
	return ok
}

// Restrict fails if s holds a key outside allowed.
func (s EditSet) Restrict(allowed ...EditField) error {
	set := make(map[EditField]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}
	for _, f := range s.Fields() {
		if _, ok := set[f]; !ok {
			return fmt.Errorf("field %q is not allowed here", f)
		}
	}
	return nil
}

// Diff keeps only the entries whose normalized value differs from a.
func (s EditSet) Diff(a *Asset) EditSet {
	out := make(EditSet, len(s))
	for f, v := range s {
		if !SameValue(a.FieldValue(f), v) {
			out[f] = v
		}
	}
	return out
}

func (s EditSet) Labels() []string {
	fields := s.Fields()
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Label())
	}
	return out
}

// Values renders the set for a history snapshot.
func (s EditSet) Values() map[string]any {
	out := make(map[string]any, len(s))
	for f, v := range s {
		out[string(f)] = f.jsonValue(v)
	}
	return out
}

func (s EditSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *EditSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseEditSet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func Text(s string) *string { return &s }

func Ref(id uint) *string {
	s := strconv.FormatUint(uint64(id), 10)
	return &s
}

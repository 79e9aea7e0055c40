package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func rawSet(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return raw
}

func TestParseEditSet(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
		check   func(t *testing.T, s EditSet)
	}{
		{
			name: "text and ref values",
			body: `{"name":" Laptop ","holder_id":12,"floor":null,"category_id":"3"}`,
			check: func(t *testing.T, s EditSet) {
				if *s[FieldName] != "Laptop" {
					t.Errorf("name not trimmed: %q", *s[FieldName])
				}
				if *s[FieldHolder] != "12" || *s[FieldCategory] != "3" {
					t.Errorf("refs not canonical: %v %v", *s[FieldHolder], *s[FieldCategory])
				}
				if v, ok := s[FieldFloor]; !ok || v != nil {
					t.Errorf("expected explicit null floor, got %v %v", v, ok)
				}
			},
		},
		{name: "unknown key", body: `{"colour":"red"}`, wantErr: "unknown field"},
		{name: "empty name", body: `{"name":""}`, wantErr: "cannot be empty"},
		{name: "null status", body: `{"status":null}`, wantErr: "cannot be null"},
		{name: "bad status", body: `{"status":"lost"}`, wantErr: "invalid status"},
		{name: "null category", body: `{"category_id":null}`, wantErr: "cannot be null"},
		{name: "non numeric holder", body: `{"holder_id":"bob"}`, wantErr: "must be an id"},
		{name: "zero holder", body: `{"holder_id":0}`, wantErr: "positive id"},
		{name: "number for text", body: `{"remark":5}`, wantErr: "must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseEditSet(rawSet(t, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestEditSetDiffNormalizesEmpty(t *testing.T) {
	a := &Asset{Name: "Monitor", Status: AssetInUse, Floor: Text("")}
	s := EditSet{
		FieldName:       Text("Monitor"),
		FieldFloor:      nil,
		FieldRemark:     Text(""),
		FieldSeatNumber: Text("A-12"),
	}
	d := s.Diff(a)
	if len(d) != 1 || !d.Has(FieldSeatNumber) {
		t.Fatalf("expected only seat_number to differ, got %v", d.Fields())
	}
}

func TestEditSetDiffIgnoresSurroundingWhitespace(t *testing.T) {
	a := &Asset{Name: " Monitor ", Status: AssetInUse, Floor: Text("3 "), Remark: Text("  ")}
	s := EditSet{
		FieldName:   Text("Monitor"),
		FieldFloor:  Text("3"),
		FieldRemark: nil,
	}
	if d := s.Diff(a); len(d) != 0 {
		t.Fatalf("expected no difference, got %v", d.Fields())
	}
	if !SameValue(Text(" x"), Text("x ")) || SameValue(Text("x"), Text("y")) {
		t.Fatal("SameValue must compare trimmed values")
	}
}

func TestEditSetFieldsOrderAndLabels(t *testing.T) {
	s := EditSet{FieldRemark: nil, FieldName: Text("x"), FieldHolder: Ref(2)}
	got := strings.Join(s.Labels(), ",")
	if got != "name,holder,remark" {
		t.Fatalf("unexpected labels order: %s", got)
	}
}

func TestEditSetJSONRoundTripKeepsRefsNumeric(t *testing.T) {
	s := EditSet{FieldHolder: Ref(7), FieldOfficeLocation: nil}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"holder_id":7`) {
		t.Fatalf("expected numeric holder id, got %s", data)
	}
	var back EditSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if *back[FieldHolder] != "7" || !back.Has(FieldOfficeLocation) || back[FieldOfficeLocation] != nil {
		t.Fatalf("unexpected set after round trip: %v", back.Values())
	}
}

func TestRestrict(t *testing.T) {
	s := EditSet{FieldFloor: Text("3"), FieldName: Text("x")}
	if err := s.Restrict(ReturnOverrideFields...); err == nil {
		t.Fatal("expected name to be rejected for return overrides")
	}
	delete(s, FieldName)
	if err := s.Restrict(ReturnOverrideFields...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssetSetFieldAndSnapshot(t *testing.T) {
	a := &Asset{Name: "Laptop", Status: AssetInUse, CategoryID: 1}
	if err := a.SetField(FieldHolder, Ref(9)); err != nil {
		t.Fatalf("set holder: %v", err)
	}
	if a.HolderID == nil || *a.HolderID != 9 {
		t.Fatalf("holder not set: %v", a.HolderID)
	}
	if err := a.SetField(FieldStatus, Text("broken")); err == nil {
		t.Fatal("expected invalid status error")
	}
	if err := a.SetField(FieldCategory, nil); err == nil {
		t.Fatal("expected category clear to fail")
	}
	snap := a.Snapshot(FieldHolder, FieldFloor, FieldName)
	if snap["holder_id"] != uint64(9) || snap["floor"] != nil || snap["name"] != "Laptop" {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

func TestAssignHolderKeepsGroupInSync(t *testing.T) {
	a := &Asset{}
	a.AssignHolder(&User{ID: 4, Group: "ops"})
	if *a.HolderID != 4 || *a.HolderGroup != "ops" {
		t.Fatalf("holder/group mismatch: %v %v", *a.HolderID, *a.HolderGroup)
	}
	a.AssignHolder(nil)
	if a.HolderID != nil || a.HolderGroup != nil {
		t.Fatal("expected holder and group cleared")
	}
}

package models

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

type AssetStatus string

const (
	AssetInUse   AssetStatus = "in_use"
	AssetInStock AssetStatus = "in_stock"
)

func (s AssetStatus) Valid() bool {
	return s == AssetInUse || s == AssetInStock
}

type Asset struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// unique among live rows, see database.ensureIndexes
	AssetNumber string `gorm:"size:100;not null" json:"asset_number"`

	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   *Category `json:"category,omitempty"`

	Name          string      `gorm:"size:200;not null" json:"name"`
	Specification *string     `gorm:"size:200" json:"specification"`
	Status        AssetStatus `gorm:"type:varchar(20);not null;default:in_use" json:"status"`
	MACAddress    *string     `gorm:"column:mac_address;size:50" json:"mac_address"`
	IPAddress     *string     `gorm:"column:ip_address;size:50" json:"ip_address"`

	OfficeLocation *string `gorm:"size:200" json:"office_location"`
	Floor          *string `gorm:"size:50" json:"floor"`
	SeatNumber     *string `gorm:"size:50" json:"seat_number"`

	// nil holder means the asset sits in the warehouse pool
	HolderID    *uint   `gorm:"index" json:"holder_id"`
	Holder      *User   `json:"holder,omitempty"`
	HolderGroup *string `gorm:"size:50" json:"holder_group"`

	Remark      *string `gorm:"type:text" json:"remark"`
	DeletedByID *uint   `json:"deleted_by_id,omitempty"`
}

func (a *Asset) IsDeleted() bool {
	return a.DeletedAt.Valid
}

// AssignHolder sets holder and the denormalized group together.
func (a *Asset) AssignHolder(u *User) {
	if u == nil {
		a.HolderID = nil
		a.HolderGroup = nil
		a.Holder = nil
		return
	}
	id, group := u.ID, u.Group
	a.HolderID = &id
	a.HolderGroup = &group
	a.Holder = u
}

// FieldValue returns the current value of an editable field in its
// canonical string form.
func (a *Asset) FieldValue(f EditField) *string {
	switch f {
	case FieldCategory:
		return refString(&a.CategoryID)
	case FieldName:
		return strPtr(a.Name)
	case FieldSpecification:
		return a.Specification
	case FieldStatus:
		return strPtr(string(a.Status))
	case FieldMACAddress:
		return a.MACAddress
	case FieldIPAddress:
		return a.IPAddress
	case FieldOfficeLocation:
		return a.OfficeLocation
	case FieldFloor:
		return a.Floor
	case FieldSeatNumber:
		return a.SeatNumber
	case FieldHolder:
		return refString(a.HolderID)
	case FieldRemark:
		return a.Remark
	}
	return nil
}

// SetField writes v onto the field. Setting FieldHolder does not touch
// HolderGroup; callers refresh it from the new holder.
func (a *Asset) SetField(f EditField, v *string) error {
	switch f {
	case FieldCategory:
		id, err := parseRef(f, v)
		if err != nil {
			return err
		}
		if id == nil {
			return fmt.Errorf("%s cannot be cleared", f)
		}
		a.CategoryID = *id
		a.Category = nil
	case FieldName:
		if v == nil || *v == "" {
			return fmt.Errorf("%s cannot be empty", f)
		}
		a.Name = *v
	case FieldSpecification:
		a.Specification = cloneStr(v)
	case FieldStatus:
		if v == nil || !AssetStatus(*v).Valid() {
			return fmt.Errorf("invalid status")
		}
		a.Status = AssetStatus(*v)
	case FieldMACAddress:
		a.MACAddress = cloneStr(v)
	case FieldIPAddress:
		a.IPAddress = cloneStr(v)
	case FieldOfficeLocation:
		a.OfficeLocation = cloneStr(v)
	case FieldFloor:
		a.Floor = cloneStr(v)
	case FieldSeatNumber:
		a.SeatNumber = cloneStr(v)
	case FieldHolder:
		id, err := parseRef(f, v)
		if err != nil {
			return err
		}
		a.HolderID = id
		a.Holder = nil
	case FieldRemark:
		a.Remark = cloneStr(v)
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// Snapshot renders the given fields for a history entry.
func (a *Asset) Snapshot(fields ...EditField) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[string(f)] = f.jsonValue(a.FieldValue(f))
	}
	return out
}

func refString(id *uint) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatUint(uint64(*id), 10)
	return &s
}

func parseRef(f EditField, v *string) (*uint, error) {
	if v == nil {
		return nil, nil
	}
	n, err := strconv.ParseUint(*v, 10, 64)
	if err != nil || n == 0 {
		return nil, fmt.Errorf("%s must be a positive id", f)
	}
	id := uint(n)
	return &id, nil
}

func strPtr(s string) *string { return &s }

func cloneStr(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

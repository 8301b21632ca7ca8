package app

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"hostel_finder/internal/domain"
)

type FormState int

const (
	FormCollapsed FormState = iota
	FormEditing
)

// DefaultRoomPrice is assigned when a room type is first selected.
const DefaultRoomPrice = "0"

var ErrFormCollapsed = errors.New("hostel form is not open")

// FormValues is the raw, string-typed field set of the hostel form.
// RoomPrices holds one entry per selected room type.
type FormValues struct {
	Name         string                     `json:"name" validate:"min=2"`
	Description  string                     `json:"description"`
	OwnerName    string                     `json:"ownerName" validate:"min=2"`
	OwnerContact string                     `json:"ownerContact" validate:"min=10"`
	RoomTypes    []domain.RoomType          `json:"roomTypes" validate:"min=1,unique,dive,roomtype"`
	RoomPrices   map[domain.RoomType]string `json:"roomPrices" validate:"dive,keys,roomtype,endkeys,min=1,price"`
}

// ValidationErrors maps a json field path to a user-facing message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid hostel form: " + strings.Join(parts, "; ")
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("roomtype", func(fl validator.FieldLevel) bool {
		return domain.RoomType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		p, err := ParsePrice(fl.Field().String())
		return err == nil && p >= 0
	})
	v.RegisterStructValidation(pricedTypesRule, FormValues{})
	return v
}

// pricedTypesRule: every selected type has a price and every price belongs to a selected type.
func pricedTypesRule(sl validator.StructLevel) {
	fv := sl.Current().Interface().(FormValues)
	selected := make(map[domain.RoomType]bool, len(fv.RoomTypes))
	for _, t := range fv.RoomTypes {
		selected[t] = true
		if _, ok := fv.RoomPrices[t]; !ok {
			sl.ReportError(fv.RoomPrices, fmt.Sprintf("roomPrices[%s]", t), "RoomPrices", "priced", string(t))
		}
	}
	for t := range fv.RoomPrices {
		if !selected[t] {
			sl.ReportError(fv.RoomPrices, fmt.Sprintf("roomPrices[%s]", t), "RoomPrices", "selected", string(t))
		}
	}
}

// Validate checks field rules and the room type/price invariant.
func (fv FormValues) Validate() error {
	err := formValidator.Struct(fv)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := ValidationErrors{}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; !seen {
			out[field] = fieldMessage(field, fe.Tag())
		}
	}
	return out
}

func fieldMessage(field, tag string) string {
	switch {
	case field == "name":
		return "Hostel name must be at least 2 characters."
	case field == "ownerName":
		return "Owner name is required."
	case field == "ownerContact":
		return "Valid contact number is required."
	case strings.HasPrefix(field, "roomTypes"):
		if tag == "roomtype" {
			return "Unknown room type."
		}
		return "Please select at least one room type."
	case strings.HasPrefix(field, "roomPrices"):
		switch tag {
		case "min", "priced":
			return "Price is required."
		case "selected":
			return "Price given for a room type that is not selected."
		case "roomtype":
			return "Unknown room type."
		}
		return "Price must be a non-negative number."
	}
	return "Invalid value."
}

// HostelForm tracks one add/edit session. It is collapsed until Open is called.
type HostelForm struct {
	state  FormState
	target *domain.HostelView
	values FormValues
}

func NewHostelForm() *HostelForm {
	return &HostelForm{state: FormCollapsed}
}

func (f *HostelForm) State() FormState { return f.state }

// Target is the record being edited, nil when adding.
func (f *HostelForm) Target() *domain.HostelView { return f.target }

// Open moves the form to editing, bound to empty defaults or to target.
func (f *HostelForm) Open(target *domain.HostelView) {
	f.state = FormEditing
	f.target = target
	f.values = FormValues{RoomPrices: map[domain.RoomType]string{}}
	if target == nil {
		return
	}
	f.values.Name = target.Name
	f.values.Description = deref(target.Description)
	f.values.OwnerName = target.OwnerName
	f.values.OwnerContact = target.OwnerContact
	for _, rt := range target.RoomTypes {
		if _, dup := f.values.RoomPrices[rt.RoomType]; dup {
			continue
		}
		f.values.RoomTypes = append(f.values.RoomTypes, rt.RoomType)
		f.values.RoomPrices[rt.RoomType] = rt.Price
	}
}

func (f *HostelForm) Close() {
	f.state = FormCollapsed
	f.target = nil
	f.values = FormValues{}
}

// Values returns a copy of the current field set.
func (f *HostelForm) Values() FormValues {
	out := f.values
	out.RoomTypes = append([]domain.RoomType(nil), f.values.RoomTypes...)
	out.RoomPrices = make(map[domain.RoomType]string, len(f.values.RoomPrices))
	for k, v := range f.values.RoomPrices {
		out.RoomPrices[k] = v
	}
	return out
}

func (f *HostelForm) SetDetails(name, description, ownerName, ownerContact string) error {
	if f.state != FormEditing {
		return ErrFormCollapsed
	}
	f.values.Name = strings.TrimSpace(name)
	f.values.Description = description
	f.values.OwnerName = strings.TrimSpace(ownerName)
	f.values.OwnerContact = strings.TrimSpace(ownerContact)
	return nil
}

// ToggleRoomType selects t with the default price, or deselects it and drops its price.
func (f *HostelForm) ToggleRoomType(t domain.RoomType) error {
	if f.state != FormEditing {
		return ErrFormCollapsed
	}
	if !t.Valid() {
		return ValidationErrors{"roomTypes": fmt.Sprintf("Unknown room type %q.", t)}
	}
	for i, cur := range f.values.RoomTypes {
		if cur == t {
			f.values.RoomTypes = append(f.values.RoomTypes[:i:i], f.values.RoomTypes[i+1:]...)
			delete(f.values.RoomPrices, t)
			return nil
		}
	}
	f.values.RoomTypes = append(f.values.RoomTypes, t)
	f.values.RoomPrices[t] = DefaultRoomPrice
	return nil
}

func (f *HostelForm) Selected(t domain.RoomType) bool {
	_, ok := f.values.RoomPrices[t]
	return ok
}

func (f *HostelForm) SetRoomPrice(t domain.RoomType, price string) error {
	if f.state != FormEditing {
		return ErrFormCollapsed
	}
	if !f.Selected(t) {
		return ValidationErrors{fmt.Sprintf("roomPrices[%s]", t): "Select the room type before setting its price."}
	}
	f.values.RoomPrices[t] = strings.TrimSpace(price)
	return nil
}

// Bind applies a submitted field set through the form's own transitions:
// details are set, selection is toggled to match v.RoomTypes, then prices are applied.
func (f *HostelForm) Bind(v FormValues) error {
	if err := f.SetDetails(v.Name, v.Description, v.OwnerName, v.OwnerContact); err != nil {
		return err
	}
	want := make(map[domain.RoomType]bool, len(v.RoomTypes))
	for _, t := range v.RoomTypes {
		want[t] = true
	}
	for _, t := range append([]domain.RoomType(nil), f.values.RoomTypes...) {
		if !want[t] {
			if err := f.ToggleRoomType(t); err != nil {
				return err
			}
		}
	}
	for _, t := range v.RoomTypes {
		if !f.Selected(t) {
			if err := f.ToggleRoomType(t); err != nil {
				return err
			}
		}
	}
	for t, p := range v.RoomPrices {
		if err := f.SetRoomPrice(t, p); err != nil {
			return err
		}
	}
	return nil
}

func (f *HostelForm) Validate() error {
	if f.state != FormEditing {
		return ErrFormCollapsed
	}
	return f.values.Validate()
}

// Submission returns the reconciled input. It is blocked while the form is
// collapsed or any rule fails.
func (f *HostelForm) Submission() (domain.HostelInput, error) {
	if err := f.Validate(); err != nil {
		return domain.HostelInput{}, err
	}
	in := domain.HostelInput{
		Name:         f.values.Name,
		OwnerName:    f.values.OwnerName,
		OwnerContact: f.values.OwnerContact,
		RoomPrices:   make([]domain.RoomPrice, 0, len(f.values.RoomTypes)),
	}
	if d := strings.TrimSpace(f.values.Description); d != "" {
		in.Description = &d
	}
	for _, t := range f.values.RoomTypes {
		p, err := ParsePrice(f.values.RoomPrices[t])
		if err != nil {
			return domain.HostelInput{}, ValidationErrors{fmt.Sprintf("roomPrices[%s]", t): "Price must be a non-negative number."}
		}
		in.RoomPrices = append(in.RoomPrices, domain.RoomPrice{RoomType: t, Price: p})
	}
	sort.SliceStable(in.RoomPrices, func(i, j int) bool {
		return in.RoomPrices[i].RoomType.Rank() < in.RoomPrices[j].RoomType.Rank()
	})
	return in, nil
}

package app

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"hostel_finder/internal/domain"
)

// CurrencySymbol prefixes the localized price label.
const CurrencySymbol = "GH₵"

var pricePrinter = message.NewPrinter(language.English)

/********** storage -> presentation **********/

// ToPresentation maps a storage record (with its room types) to the view model.
// A nil thumbnail becomes "", a nil description stays nil.
func ToPresentation(r domain.HostelRecord) domain.HostelView {
	v := domain.HostelView{
		ID:             r.ID,
		Name:           r.Name,
		Description:    copyStr(r.Description),
		Price:          formatPrice(r.Price),
		PriceLabel:     PriceLabel(r.Price),
		AvailableRooms: r.AvailableRooms,
		OwnerName:      r.OwnerName,
		OwnerContact:   r.OwnerContact,
		Thumbnail:      deref(r.Thumbnail),
		RoomTypes:      make([]domain.RoomTypeView, 0, len(r.RoomTypes)),
	}
	for _, rt := range r.RoomTypes {
		v.RoomTypes = append(v.RoomTypes, domain.RoomTypeView{
			ID:       rt.ID,
			RoomType: rt.RoomType,
			Price:    formatPrice(rt.Price),
		})
	}
	return v
}

/********** presentation -> storage **********/

// ToStorage is the inverse of ToPresentation for every field but timestamps.
// It fails only when a price string is not a number.
func ToStorage(v domain.HostelView) (domain.HostelRecord, error) {
	price, err := ParsePrice(v.Price)
	if err != nil {
		return domain.HostelRecord{}, fmt.Errorf("hostel %q price: %w", v.ID, err)
	}
	r := domain.HostelRecord{
		ID:             v.ID,
		Name:           v.Name,
		Description:    copyStr(v.Description),
		Price:          price,
		AvailableRooms: v.AvailableRooms,
		OwnerName:      v.OwnerName,
		OwnerContact:   v.OwnerContact,
		Thumbnail:      ptrStr(v.Thumbnail),
	}
	if len(v.RoomTypes) > 0 {
		r.RoomTypes = make([]domain.RoomTypeRecord, 0, len(v.RoomTypes))
	}
	for _, rt := range v.RoomTypes {
		p, err := ParsePrice(rt.Price)
		if err != nil {
			return domain.HostelRecord{}, fmt.Errorf("room type %s price: %w", rt.RoomType, err)
		}
		r.RoomTypes = append(r.RoomTypes, domain.RoomTypeRecord{
			ID:       rt.ID,
			HostelID: v.ID,
			RoomType: rt.RoomType,
			Price:    p,
		})
	}
	return r, nil
}

/********** tiny helpers **********/

// MaxPrice is the largest value the DECIMAL(12,2) price columns hold.
const MaxPrice = 9999999999.99

// plain digits or proper thousands groups, at most two decimals
var priceRe = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d{1,2})?$`)

// ParsePrice accepts non-negative amounts such as "3500", "3,500" or "3500.25"
// that fit the price columns exactly. Exponents, Inf/NaN and loose commas are refused.
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	if !priceRe.MatchString(s) {
		return 0, fmt.Errorf("malformed price %q", s)
	}
	p, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(p, 0) || math.IsNaN(p) || p > MaxPrice {
		return 0, fmt.Errorf("price %q out of range", s)
	}
	return p, nil
}

// PriceLabel renders a price for display, e.g. "GH₵ 3,500.00".
func PriceLabel(p float64) string {
	return pricePrinter.Sprintf("%s %.2f", CurrencySymbol, p)
}

func formatPrice(p float64) string { return strconv.FormatFloat(p, 'f', -1, 64) }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

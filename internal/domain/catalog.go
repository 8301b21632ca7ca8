package domain

import "strings"

type RoomType string

const (
	RoomSingle    RoomType = "single"
	RoomDouble    RoomType = "double"
	RoomTriple    RoomType = "triple"
	RoomQuad      RoomType = "quad"
	RoomSuite     RoomType = "suite"
	RoomApartment RoomType = "apartment"
)

var roomTypes = [...]RoomType{RoomSingle, RoomDouble, RoomTriple, RoomQuad, RoomSuite, RoomApartment}

// RoomTypes returns the catalog in display order. The slice is a copy.
func RoomTypes() []RoomType {
	out := make([]RoomType, len(roomTypes))
	copy(out, roomTypes[:])
	return out
}

func (t RoomType) Valid() bool {
	for _, rt := range roomTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Rank is the catalog position of t, or -1.
func (t RoomType) Rank() int {
	for i, rt := range roomTypes {
		if rt == t {
			return i
		}
	}
	return -1
}

// Title is the capitalized label used in listings ("Single").
func (t RoomType) Title() string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseRoomType(s string) (RoomType, bool) {
	t := RoomType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

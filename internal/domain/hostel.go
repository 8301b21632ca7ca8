package domain

import "time"

// HostelRecord is the storage shape of a hostel row (snake_case, numeric price).
type HostelRecord struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    *string          `json:"description"`
	Price          float64          `json:"price"`
	AvailableRooms int              `json:"available_rooms"`
	OwnerName      string           `json:"owner_name"`
	OwnerContact   string           `json:"owner_contact"`
	Thumbnail      *string          `json:"thumbnail"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	RoomTypes      []RoomTypeRecord `json:"room_types,omitempty"`
}

// RoomTypeRecord is one row of hostel_room_types.
type RoomTypeRecord struct {
	ID        string    `json:"id"`
	HostelID  string    `json:"hostel_id"`
	RoomType  RoomType  `json:"room_type"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// HostelView is the presentation shape served to clients.
type HostelView struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	Price          string         `json:"price"`
	PriceLabel     string         `json:"priceLabel"`
	AvailableRooms int            `json:"availableRooms"`
	OwnerName      string         `json:"ownerName"`
	OwnerContact   string         `json:"ownerContact"`
	Thumbnail      string         `json:"thumbnail"`
	RoomTypes      []RoomTypeView `json:"roomTypes"`
}

type RoomTypeView struct {
	ID       string   `json:"id"`
	RoomType RoomType `json:"roomType"`
	Price    string   `json:"price"`
}

// HostelInput is a validated form submission ready for the operations service.
// Prices are keyed by room type and listed in catalog order.
type HostelInput struct {
	Name         string
	Description  *string
	OwnerName    string
	OwnerContact string
	RoomPrices   []RoomPrice
}

type RoomPrice struct {
	RoomType RoomType
	Price    float64
}

// StartingPrice is the lowest room-type price, or 0 when there are none.
func (in HostelInput) StartingPrice() float64 {
	if len(in.RoomPrices) == 0 {
		return 0
	}
	low := in.RoomPrices[0].Price
	for _, rp := range in.RoomPrices[1:] {
		if rp.Price < low {
			low = rp.Price
		}
	}
	return low
}

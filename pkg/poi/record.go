package poi

import "strconv"

// Record is one flat POI row. Records are not modified after parsing.
type Record struct {
	// Index is the 1-based position of the record within its query.
	Index int `json:"index"`

	Name     string  `json:"name"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Province string  `json:"province"`
	City     string  `json:"city"`
	District string  `json:"district"`

	// Location is the raw "lng,lat" string as sent by the API.
	Location string `json:"location"`

	CategoryMajor string `json:"category_major"`
	CategoryMid   string `json:"category_mid"`
	CategorySub   string `json:"category_sub"`

	// ParkingType is empty unless the POI is a parking lot that reports one.
	ParkingType string `json:"parking_type,omitempty"`

	// Rating is the API rating or the parser's placeholder.
	Rating string `json:"rating"`
}

// Columns is the column order of tabular exports.
var Columns = []string{
	"index", "name", "lng", "lat", "province", "city", "area", "location",
	"big_category", "mid_category", "sub_category", "rating", "parking_type",
}

// Row returns the record's values in Columns order.
func (r Record) Row() []any {
	return []any{
		r.Index, r.Name, r.Lng, r.Lat, r.Province, r.City, r.District, r.Location,
		r.CategoryMajor, r.CategoryMid, r.CategorySub, r.Rating, r.ParkingType,
	}
}

// Strings returns Row formatted as text.
func (r Record) Strings() []string {
	return []string{
		strconv.Itoa(r.Index), r.Name,
		strconv.FormatFloat(r.Lng, 'f', -1, 64),
		strconv.FormatFloat(r.Lat, 'f', -1, 64),
		r.Province, r.City, r.District, r.Location,
		r.CategoryMajor, r.CategoryMid, r.CategorySub, r.Rating, r.ParkingType,
	}
}

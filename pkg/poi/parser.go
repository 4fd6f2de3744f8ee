package poi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultRatingPlaceholder stands in for a missing rating ("no rating data").
	DefaultRatingPlaceholder = "暂无评分数据"

	locationSeparator = ","
	categorySeparator = ";"
)

// DefaultParkingCodes lists the type codes whose parking_type is kept.
var DefaultParkingCodes = []string{
	"150900", "150903", "150904", "150905", "150906", "150907", "150908", "150909",
}

// Parse errors by missing or malformed field.
var (
	ErrMissingName     = errors.New("missing name")
	ErrInvalidLocation = errors.New("invalid location")
	ErrInvalidType     = errors.New("invalid type")
)

// ParseError describes one item that could not be turned into a Record.
type ParseError struct {
	// Position is the 0-based index of the item within its page.
	Position int
	Name     string
	Field    string
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("item %d (%q): field %s: %v", e.Position, e.Name, e.Field, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser converts page items into Records.
type Parser struct {
	parkingCodes      map[string]struct{}
	ratingPlaceholder string
}

// NewParser returns a parser with the default parking allow-list and rating placeholder.
func NewParser() *Parser {
	return NewParserWith(DefaultParkingCodes, DefaultRatingPlaceholder)
}

// NewParserWith returns a parser with custom parking codes and rating placeholder.
func NewParserWith(parkingCodes []string, ratingPlaceholder string) *Parser {
	codes := make(map[string]struct{}, len(parkingCodes))
	for _, code := range parkingCodes {
		code = strings.TrimSpace(code)
		if code != "" {
			codes[code] = struct{}{}
		}
	}
	return &Parser{parkingCodes: codes, ratingPlaceholder: ratingPlaceholder}
}

// Parse converts the items of page into records numbered from runningCount+1.
// Malformed items are skipped and returned as failures; they never stop the page.
func (p *Parser) Parse(page *PageResponse, runningCount int) ([]Record, int, []*ParseError) {
	if page == nil || len(page.POIs) == 0 {
		return nil, runningCount, nil
	}

	records := make([]Record, 0, len(page.POIs))
	var failures []*ParseError
	next := runningCount

	for i := range page.POIs {
		rec, perr := p.parseItem(&page.POIs[i])
		if perr != nil {
			perr.Position = i
			failures = append(failures, perr)
			continue
		}
		next++
		rec.Index = next
		records = append(records, rec)
	}
	return records, next, failures
}

func (p *Parser) parseItem(item *RawPOI) (Record, *ParseError) {
	name := item.Name.String()
	if name == "" {
		return Record{}, &ParseError{Field: "name", Err: ErrMissingName}
	}

	location := item.Location.String()
	lng, lat, err := splitLocation(location)
	if err != nil {
		return Record{}, &ParseError{Name: name, Field: "location", Err: err}
	}

	major, mid, sub, err := splitCategory(item.Type.String())
	if err != nil {
		return Record{}, &ParseError{Name: name, Field: "type", Err: err}
	}

	rec := Record{
		Name:          name,
		Lng:           lng,
		Lat:           lat,
		Province:      item.PName.String(),
		City:          item.CityName.String(),
		District:      item.AdName.String(),
		Location:      location,
		CategoryMajor: major,
		CategoryMid:   mid,
		CategorySub:   sub,
		Rating:        p.ratingPlaceholder,
	}

	if item.Business != nil {
		if _, ok := p.parkingCodes[item.TypeCode.String()]; ok {
			rec.ParkingType = item.Business.ParkingType.String()
		}
		if rating := item.Business.Rating.String(); rating != "" {
			rec.Rating = rating
		}
	}
	return rec, nil
}

func splitLocation(location string) (float64, float64, error) {
	if location == "" {
		return 0, 0, ErrInvalidLocation
	}
	parts := strings.Split(location, locationSeparator)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	return lng, lat, nil
}

func splitCategory(typ string) (string, string, string, error) {
	parts := strings.Split(typ, categorySeparator)
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	return parts[0], parts[1], parts[2], nil
}

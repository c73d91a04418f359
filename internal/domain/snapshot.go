package domain

import (
	"context"
	"strings"
)

// WeatherSnapshot is one point-in-time reading for the configured city.
type WeatherSnapshot struct {
	TempC       float64
	Humidity    float64
	Category    string
	Description string
	WindSpeed   float64
	Icon        string
}

// WeatherProvider fetches current conditions for a city.
type WeatherProvider interface {
	Current(ctx context.Context, city string) (WeatherSnapshot, error)
}

// Conditions is a snapshot with its free-text fields lowercased and trimmed,
// ready for substring matching.
type Conditions struct {
	TempC       float64
	Humidity    float64
	Category    string
	Description string
}

// Normalize prepares a snapshot for rule matching.
func Normalize(s WeatherSnapshot) Conditions {
	return Conditions{
		TempC:       s.TempC,
		Humidity:    s.Humidity,
		Category:    strings.ToLower(strings.TrimSpace(s.Category)),
		Description: strings.ToLower(strings.TrimSpace(s.Description)),
	}
}

func (c Conditions) categoryHas(words ...string) bool {
	return containsAny(c.Category, words)
}

func (c Conditions) descriptionHas(words ...string) bool {
	return containsAny(c.Description, words)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Thresholds for the heat rule.
const (
	HeatTempC        = 32.0
	HeatMaxHumidity  = 60.0
	morningStartHour = 6
	morningEndHour   = 9 // inclusive
)

// Rule is one entry in the ordered advisory rule list.
type Rule struct {
	Name  string
	Match func(c Conditions, hour int) bool
	Build func(s WeatherSnapshot, city string) WeatherAlert
}

// Rules returns the advisory rules in priority order.
func Rules() []Rule {
	return []Rule{
		{
			Name: "heat",
			Match: func(c Conditions, _ int) bool {
				return c.TempC > HeatTempC && c.Humidity < HeatMaxHumidity
			},
			Build: func(s WeatherSnapshot, city string) WeatherAlert {
				return WeatherAlert{
					Type: AlertWatering,
					Message: fmt.Sprintf("High temperature (%s°C) and low humidity detected in %s. Please water your trees!",
						FormatTemp(s.TempC), city),
					Urgency: UrgencyHigh,
				}
			},
		},
		{
			Name: "heavy_rain",
			Match: func(c Conditions, _ int) bool {
				return isRain(c) && c.descriptionHas("heavy", "extreme")
			},
			Build: func(_ WeatherSnapshot, city string) WeatherAlert {
				return WeatherAlert{
					Type:    AlertFlood,
					Message: fmt.Sprintf("Heavy rain detected in %s. Monitor your young saplings for waterlogging.", city),
					Urgency: UrgencyHigh,
				}
			},
		},
		{
			Name: "rain",
			Match: func(c Conditions, _ int) bool {
				return isRain(c)
			},
			Build: func(_ WeatherSnapshot, city string) WeatherAlert {
				return WeatherAlert{
					Type:    AlertMaintenance,
					Message: fmt.Sprintf("It's raining in %s! Natural watering in progress.", city),
					Urgency: UrgencyLow,
				}
			},
		},
		{
			Name: "thunderstorm",
			Match: func(c Conditions, _ int) bool {
				return c.categoryHas("thunderstorm")
			},
			Build: func(_ WeatherSnapshot, city string) WeatherAlert {
				return WeatherAlert{
					Type:    AlertStorm,
					Message: fmt.Sprintf("Thunderstorms detected in %s. Ensure young trees are properly staked.", city),
					Urgency: UrgencyHigh,
				}
			},
		},
		{
			Name: "morning",
			Match: func(_ Conditions, hour int) bool {
				return hour >= morningStartHour && hour <= morningEndHour
			},
			Build: func(_ WeatherSnapshot, _ string) WeatherAlert {
				return WeatherAlert{
					Type:    AlertMaintenance,
					Message: "Good morning! The current weather is perfect for tree maintenance.",
					Urgency: UrgencyLow,
				}
			},
		},
	}
}

var defaultRules = Rules()

// Evaluate returns the advisory for a snapshot, or nil when no rule matches.
// now must already be in the city's local time zone.
func Evaluate(s WeatherSnapshot, now time.Time, city string) *WeatherAlert {
	alert, _ := EvaluateRules(defaultRules, s, now, city)
	return alert
}

// EvaluateRules runs rules in order and returns the first match along with
// the matching rule's name.
func EvaluateRules(rules []Rule, s WeatherSnapshot, now time.Time, city string) (*WeatherAlert, string) {
	c := Normalize(s)
	hour := now.Hour()
	for _, r := range rules {
		if !r.Match(c, hour) {
			continue
		}
		alert := r.Build(s, city)
		alert.Details = detailsFrom(s)
		return &alert, r.Name
	}
	return nil, ""
}

// FormatTemp renders a temperature with no trailing zeros: 35 → "35", 33.5 → "33.5".
func FormatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

func isRain(c Conditions) bool {
	// Drizzle is its own category upstream and waters trees just the same.
	if c.categoryHas("rain", "drizzle") {
		return true
	}
	// "thunderstorm with rain" belongs to the storm rule.
	return c.descriptionHas("rain") && !c.categoryHas("thunderstorm")
}

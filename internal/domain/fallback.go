package domain

import (
	"fmt"
	"time"
)

// dryMonths are the months that get a watering advisory in fallback mode.
var dryMonths = map[time.Month]bool{
	time.January:  true,
	time.February: true,
	time.March:    true,
	time.July:     true,
	time.August:   true,
}

// Fallback derives an advisory from the calendar alone. It is used when no
// provider key is configured. now must already be in the city's local time zone.
func Fallback(now time.Time, city string) *WeatherAlert {
	if dryMonths[now.Month()] {
		return &WeatherAlert{
			Type:    AlertWatering,
			Message: fmt.Sprintf("Dry weather detected in %s. Please water your trees today!", city),
			Urgency: UrgencyHigh,
		}
	}
	if h := now.Hour(); h > 6 && h < 10 {
		return &WeatherAlert{
			Type:    AlertMaintenance,
			Message: "Good morning! Perfect time for basic tree maintenance.",
			Urgency: UrgencyLow,
		}
	}
	return nil
}

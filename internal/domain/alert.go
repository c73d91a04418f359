package domain

// AlertType classifies the recommended gardening action.
type AlertType string

const (
	AlertWatering    AlertType = "watering"
	AlertMaintenance AlertType = "maintenance"
	AlertFlood       AlertType = "flood"
	AlertStorm       AlertType = "storm"
)

// Urgency is how soon the advisory should be acted on.
type Urgency string

const (
	UrgencyHigh Urgency = "high"
	UrgencyLow  Urgency = "low"
)

// WeatherAlert is a single advisory produced by one evaluation.
type WeatherAlert struct {
	Type    AlertType     `json:"type"`
	Message string        `json:"message"`
	Urgency Urgency       `json:"urgency"`
	Details *AlertDetails `json:"details,omitempty"`
}

// AlertDetails echoes the conditions an alert was derived from. Fallback
// alerts carry no details since they are not based on real readings.
type AlertDetails struct {
	TempC       float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Description string  `json:"description"`
	Icon        string  `json:"icon,omitempty"`
}

func detailsFrom(s WeatherSnapshot) *AlertDetails {
	return &AlertDetails{
		TempC:       s.TempC,
		Humidity:    s.Humidity,
		WindSpeed:   s.WindSpeed,
		Description: s.Description,
		Icon:        s.Icon,
	}
}

package domain

import "context"

// CurrentWeather mirrors the Open-Meteo current_weather block.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	IsDay         int     `json:"is_day"`
	Time          string  `json:"time"`
}

// WeatherRecord is the weather at a point, or an error marker when the
// provider could not be reached.
type WeatherRecord struct {
	Latitude       float64         `json:"latitude,omitempty"`
	Longitude      float64         `json:"longitude,omitempty"`
	CurrentWeather *CurrentWeather `json:"current_weather,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// WeatherError builds an error-carrying record.
func WeatherError(msg string) WeatherRecord {
	return WeatherRecord{Error: msg}
}

// OK reports whether the record carries usable weather.
func (w WeatherRecord) OK() bool {
	return w.Error == "" && w.CurrentWeather != nil
}

// WeatherProvider fetches current conditions for a coordinate.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (WeatherRecord, error)
}

// WeatherSummary is the condensed weather block returned alongside road info.
type WeatherSummary struct {
	Summary     string  `json:"summary"`
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"windspeed"`
	WeatherCode int     `json:"weathercode"`
	Time        string  `json:"time"`
	Error       string  `json:"error,omitempty"`
}

// Summarize condenses a record for display.
func (w WeatherRecord) Summarize() WeatherSummary {
	if !w.OK() {
		msg := w.Error
		if msg == "" {
			msg = "weather unavailable"
		}
		return WeatherSummary{Summary: "Unknown", Error: msg}
	}
	cw := w.CurrentWeather
	return WeatherSummary{
		Summary:     DescribeWeatherCode(cw.WeatherCode),
		Temperature: cw.Temperature,
		WindSpeed:   cw.WindSpeed,
		WeatherCode: cw.WeatherCode,
		Time:        cw.Time,
	}
}

// WMO weather interpretation codes used by Open-Meteo.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeWeatherCode returns the human-readable label for a WMO code.
func DescribeWeatherCode(code int) string {
	if s, ok := weatherCodes[code]; ok {
		return s
	}
	return "Unknown"
}

// IsPrecipitation reports whether a WMO code describes falling rain, snow or hail.
func IsPrecipitation(code int) bool {
	return code >= 51
}

// IsFrozen reports whether a WMO code implies ice or snow on the ground.
func IsFrozen(code int) bool {
	switch code {
	case 56, 57, 66, 67, 71, 73, 75, 77, 85, 86:
		return true
	}
	return false
}

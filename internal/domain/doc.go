// Package domain models current weather conditions and the tree-care
// advisories derived from them.
//
// # Data Source
//
// Snapshots come from the OpenWeather current-weather endpoint, requested in
// metric units for a single configured city. Only a handful of fields are
// read:
//
//	main.temp           → TempC (°C)
//	main.humidity       → Humidity (%)
//	weather[0].main     → Category, e.g. "Rain", "Thunderstorm", "Clear"
//	weather[0].description → Description, e.g. "heavy intensity rain"
//	wind.speed          → WindSpeed (m/s), details only
//	weather[0].icon     → Icon, details only
//
// Category and Description are free text from the provider's condition
// vocabulary (https://openweathermap.org/weather-conditions). Matching is a
// case-insensitive substring test after [Normalize].
//
// # Rule Order
//
// [Evaluate] walks an ordered rule list and returns the first match:
//
//  1. watering/high     temp > 32 °C and humidity < 60 %
//  2. flood/high        rain (or drizzle) with "heavy" or "extreme" in the description
//  3. maintenance/low   any other rain or drizzle
//  4. storm/high        thunderstorm category
//  5. maintenance/low   local hour 06:00–09:59
//
// No match means no advisory.
//
// # Fallback Heuristic
//
// Without a provider key, [Fallback] guesses from the calendar instead:
// January–March and July–August are the dry months for the Western Province
// and always yield a watering advisory; otherwise 07:00–09:59 yields a
// maintenance tip.
package domain

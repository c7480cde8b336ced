package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/habitat-api/internal/model"
)

// predictionQuery is a validated score request.
type predictionQuery struct {
	Country string
	Year    int
}

// parsePrediction validates country, day, month and year. The date fields
// are all-or-nothing; without them the prediction year is the current one.
// A date more than a day in the past is rejected.
func parsePrediction(q url.Values, now time.Time) (predictionQuery, error) {
	var pq predictionQuery

	year, err := parseDate(q, now)
	if err != nil {
		return pq, err
	}
	pq.Year = year

	if raw, ok := q["country"]; ok {
		country, err := parseCountry(raw[0])
		if err != nil {
			return pq, err
		}
		pq.Country = country
	}
	return pq, nil
}

func parseDate(q url.Values, now time.Time) (int, error) {
	day, month, year := q.Get("day"), q.Get("month"), q.Get("year")
	if day == "" && month == "" && year == "" {
		return now.Year(), nil
	}
	switch {
	case day == "":
		return 0, badQuery("the day wasn't supplied")
	case month == "":
		return 0, badQuery("the month wasn't supplied")
	case year == "":
		return 0, badQuery("the year wasn't supplied")
	}

	d, errD := strconv.Atoi(day)
	m, errM := strconv.Atoi(month)
	y, errY := strconv.Atoi(year)
	if errD != nil || errM != nil || errY != nil {
		return 0, badQuery("invalid date")
	}

	supplied := time.Date(y, time.Month(m), d, 0, 0, 0, 0, now.Location())
	// time.Date normalises out-of-range fields, so a round trip detects them.
	if supplied.Year() != y || int(supplied.Month()) != m || supplied.Day() != d {
		return 0, badQuery("invalid date")
	}
	if supplied.AddDate(0, 0, 1).Before(now) {
		return 0, badQuery("the date entered was in the past")
	}
	return y, nil
}

// parseCountry canonicalises ISO codes to alpha-3 and accepts plain country
// names as stored by name-keyed datasets.
func parseCountry(raw string) (string, error) {
	country, iso := model.CanonicalCountry(raw)
	if iso {
		return country, nil
	}
	if country == "" || len(country) > 64 {
		return "", badQuery("country doesn't match schema")
	}
	for _, r := range country {
		if !unicode.IsLetter(r) && !strings.ContainsRune(" -'.(),&", r) {
			return "", badQuery("country doesn't match schema")
		}
	}
	return country, nil
}

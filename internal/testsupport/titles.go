package testsupport

import (
	"encoding/json"
	"strings"
)

// Title is a compact fixture for a remote title payload.
type Title struct {
	ID        string
	Type      string
	Name      string
	Year      int
	Rating    float64
	Votes     int
	Genres    []string
	Countries []string
}

// JSON renders the title in the remote service's shape.
func (t Title) JSON() json.RawMessage {
	kind := t.Type
	if kind == "" {
		kind = "movie"
	}
	doc := map[string]any{
		"id":           t.ID,
		"type":         kind,
		"primaryTitle": t.Name,
	}
	if t.Year != 0 {
		doc["startYear"] = t.Year
	}
	if t.Rating != 0 {
		doc["rating"] = map[string]any{"aggregateRating": t.Rating, "voteCount": t.Votes}
	}
	if t.Genres != nil {
		doc["genres"] = t.Genres
	}
	if t.Countries != nil {
		countries := make([]map[string]string, 0, len(t.Countries))
		for _, name := range t.Countries {
			countries = append(countries, map[string]string{"code": strings.ToUpper(name[:2]), "name": name})
		}
		doc["originCountries"] = countries
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// Catalog is a small set of titles shared by package tests.
func Catalog() []Title {
	return []Title{
		{ID: "tt0111161", Name: "The Shawshank Redemption", Year: 1994, Rating: 9.3, Votes: 3000000, Genres: []string{"Drama"}, Countries: []string{"United States"}},
		{ID: "tt0068646", Name: "The Godfather", Year: 1972, Rating: 9.2, Votes: 2000000, Genres: []string{"Crime", "Drama"}, Countries: []string{"United States"}},
		{ID: "tt0118799", Name: "Life Is Beautiful", Year: 1997, Rating: 8.6, Votes: 800000, Genres: []string{"Comedy", "Drama", "Romance"}, Countries: []string{"Italy"}},
		{ID: "tt0211915", Name: "Amélie", Year: 2001, Rating: 8.3, Votes: 800000, Genres: []string{"Comedy", "Romance"}, Countries: []string{"France", "Germany (West)"}},
		{ID: "tt0903747", Type: "tvSeries", Name: "Breaking Bad", Year: 2008, Rating: 9.5, Votes: 2200000, Genres: []string{"Crime", "Drama", "Thriller"}, Countries: []string{"United States"}},
		{ID: "tt9999990", Name: "Edge Low", Year: 2020, Rating: 8.9, Genres: []string{"Documentary"}},
		{ID: "tt9999991", Name: "Edge High", Year: 2020, Rating: 10.1, Genres: []string{"Documentary"}},
	}
}

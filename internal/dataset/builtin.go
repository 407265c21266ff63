package dataset

import "time"

// Movies describes the movies dataset.
func Movies() *Dataset {
	maxYear := float64(time.Now().Year() + 5)
	return &Dataset{
		Name:     "movies",
		Title:    "Movies",
		Identity: "id",
		Wire:     EnvelopeFormat{Envelope: "movieEntities"},
		Columns: []Column{
			{Field: "id", Label: "Title Id", Type: TypeNumber, Help: "Id of the Movie",
				Min: bound(1), Max: bound(1e11), Step: 1, Required: true},
			{Field: "title", Label: "Title", Type: TypeText, Help: "Title of the Movie",
				MaxChars: 100, Required: true},
			{Field: "year", Label: "Year", Type: TypeNumber, Help: "Year of release",
				Min: bound(1900), Max: bound(maxYear), Step: 1, Required: true},
			{Field: "votes", Label: "Votes", Type: TypeNumber, Help: "Number of votes",
				Min: bound(1), Max: bound(8e9), Step: 1, Required: true},
			{Field: "rating", Label: "Rating", Type: TypeNumber, Help: "Rating out of 10",
				Min: bound(0), Max: bound(10), Step: 0.1, Format: "%.1f", Required: true},
			{Field: "genres", Label: "Genres", Type: TypeText, Help: "Comma separated genres",
				Pattern: `^[a-zA-z ,-]+$`, Required: true},
		},
		AuditColumns: auditColumns(),
	}
}

// SuperHeroes describes the super heroes dataset. Its backend carries
// awards as a JSON array.
func SuperHeroes() *Dataset {
	return &Dataset{
		Name:     "super_heroes",
		Title:    "Super Heroes",
		Identity: "id",
		Wire:     EnvelopeFormat{Envelope: "superHeroDtoList", ListFields: []string{"awards"}},
		Columns: []Column{
			{Field: "id", Label: "Hero Id", Type: TypeNumber, Help: "Id of the Hero",
				Min: bound(1), Step: 1, Required: true},
			{Field: "name", Label: "Name of the Hero", Type: TypeText, MaxChars: 100, Required: true},
			{Field: "imdb_link", Label: "IMDB Link", Type: TypeLink,
				DisplayText: `https://www.imdb.com/name/(.*?)/`, Required: true},
			{Field: "awards", Label: "Key Awards", Type: TypeText, Help: "Comma separated awards",
				MaxChars: 100, Required: true},
		},
		AuditColumns: auditColumns(),
	}
}

func auditColumns() []Column {
	return []Column{
		{Field: "version", Label: "Version #", Type: TypeNumber, Min: bound(0), Max: bound(1000)},
		{Field: "operation", Label: "Operation", Type: TypeText},
	}
}

package model

// All lists every table the application migrates.
func All() []any {
	return []any{
		&Worksheet{},
		&WorksheetRow{},
		&KVEntry{},
	}
}

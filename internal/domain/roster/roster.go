package roster

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownRole   = errors.New("unknown roster role")
	ErrDuplicateRole = errors.New("duplicate roster role")
	ErrMissingRole   = errors.New("roster role missing")
	ErrUnknownDay    = errors.New("unknown roster day")
)

const FieldRole = "role"

var Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DefaultRoles is the fixed duty list of the crane section.
var DefaultRoles = []string{
	"Shift Supervisor",
	"Mechanical Foreman",
	"Electrical Foreman",
	"Mechanic",
	"Electrician",
	"Hydraulic Technician",
	"Welder",
	"Store Keeper",
}

// Header is the stored column order: role, then every day of the week.
func Header() []string {
	return append([]string{FieldRole}, Days...)
}

// Row is one role's assignees for the week, keyed by day.
type Row struct {
	Role string
	Days map[string]string
}

func (r Row) Day(day string) string { return r.Days[day] }

// Record returns the stored cells of the row.
func (r Row) Record() map[string]string {
	out := make(map[string]string, len(Days)+1)
	out[FieldRole] = r.Role
	for _, day := range Days {
		out[day] = strings.TrimSpace(r.Days[day])
	}
	return out
}

func RowFromRecord(rec map[string]string) Row {
	row := Row{Role: strings.TrimSpace(rec[FieldRole]), Days: make(map[string]string, len(Days))}
	for _, day := range Days {
		row.Days[day] = rec[day]
	}
	return row
}

// Grid is the whole roster in role order.
type Grid struct {
	Rows []Row
}

// Blank returns one row per role with every day empty.
func Blank(roles []string) Grid {
	grid := Grid{Rows: make([]Row, 0, len(roles))}
	for _, role := range roles {
		days := make(map[string]string, len(Days))
		for _, day := range Days {
			days[day] = ""
		}
		grid.Rows = append(grid.Rows, Row{Role: role, Days: days})
	}
	return grid
}

// Canonical checks that the grid holds every role exactly once and returns it ordered
// like roles. Day keys outside the week are rejected.
func (g Grid) Canonical(roles []string) (Grid, error) {
	byRole := make(map[string]Row, len(g.Rows))
	for _, row := range g.Rows {
		role := strings.TrimSpace(row.Role)
		if !slices.Contains(roles, role) {
			return Grid{}, fmt.Errorf("%w: %q", ErrUnknownRole, row.Role)
		}
		if _, dup := byRole[role]; dup {
			return Grid{}, fmt.Errorf("%w: %q", ErrDuplicateRole, role)
		}
		for day := range row.Days {
			if !slices.Contains(Days, day) {
				return Grid{}, fmt.Errorf("%w: %q", ErrUnknownDay, day)
			}
		}
		row.Role = role
		byRole[role] = row
	}

	out := Grid{Rows: make([]Row, 0, len(roles))}
	var missing []string
	for _, role := range roles {
		row, ok := byRole[role]
		if !ok {
			missing = append(missing, role)
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	if len(missing) > 0 {
		return Grid{}, fmt.Errorf("%w: %s", ErrMissingRole, strings.Join(missing, ", "))
	}
	return out, nil
}

// Normalize returns one row per role, ordered like roles. Roles without a row get a
// blank one. Rows with an unknown role and repeats of a role after its first row are
// dropped; their roles are returned.
func (g Grid) Normalize(roles []string) (Grid, []string) {
	byRole := make(map[string]Row, len(g.Rows))
	var dropped []string
	for _, row := range g.Rows {
		role := strings.TrimSpace(row.Role)
		if _, dup := byRole[role]; dup || !slices.Contains(roles, role) {
			dropped = append(dropped, row.Role)
			continue
		}
		days := make(map[string]string, len(Days))
		for _, day := range Days {
			days[day] = row.Days[day]
		}
		byRole[role] = Row{Role: role, Days: days}
	}

	out := Blank(roles)
	for i, row := range out.Rows {
		if stored, ok := byRole[row.Role]; ok {
			out.Rows[i] = stored
		}
	}
	return out, dropped
}

// Records returns the stored cells of every row in grid order.
func (g Grid) Records() []map[string]string {
	out := make([]map[string]string, 0, len(g.Rows))
	for _, row := range g.Rows {
		out = append(out, row.Record())
	}
	return out
}

// Assign sets one cell, returning false for an unknown role or day.
func (g Grid) Assign(role, day, name string) bool {
	if !slices.Contains(Days, day) {
		return false
	}
	for i := range g.Rows {
		if g.Rows[i].Role == role {
			if g.Rows[i].Days == nil {
				g.Rows[i].Days = make(map[string]string, len(Days))
			}
			g.Rows[i].Days[day] = strings.TrimSpace(name)
			return true
		}
	}
	return false
}

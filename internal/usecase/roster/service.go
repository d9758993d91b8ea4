package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"cranesection/internal/bootstrap/logging"
	domain "cranesection/internal/domain/roster"
	"cranesection/internal/errs"
	"cranesection/internal/usecase/recordstore"
)

// RecordStore is the part of recordstore.Store the roster needs.
type RecordStore interface {
	EnsureSchema(ctx context.Context, header []string) error
	LoadAllWithVersion(ctx context.Context) (recordstore.Table, string, error)
	OverwriteAll(ctx context.Context, header []string, rows []recordstore.Record, expectedVersion string) (string, error)
}

type Service struct {
	records RecordStore
	roles   []string
}

func NewService(records RecordStore, roles []string) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if len(roles) == 0 {
		roles = domain.DefaultRoles
	}
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if strings.TrimSpace(role) == "" {
			return nil, errors.New("roster role must not be blank")
		}
		if _, dup := seen[role]; dup {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateRole, role)
		}
		seen[role] = struct{}{}
	}
	return &Service{records: records, roles: append([]string(nil), roles...)}, nil
}

func (s *Service) Roles() []string { return append([]string(nil), s.roles...) }

// View is a loaded roster and the version token to save it against.
type View struct {
	Grid    domain.Grid
	Version string
}

// Load returns the roster, writing one blank row per role the first time the
// worksheet is read empty.
func (s *Service) Load(ctx context.Context) (View, error) {
	if ctx == nil {
		return View{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return View{}, errs.Wrap(err, "check context")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.roster"))

	header := domain.Header()
	if err := s.records.EnsureSchema(ctx, header); err != nil {
		return View{}, err
	}
	table, version, err := s.records.LoadAllWithVersion(ctx)
	if err != nil {
		return View{}, err
	}

	if len(table.Records) == 0 {
		grid := domain.Blank(s.roles)
		newVersion, err := s.records.OverwriteAll(ctx, header, toRecords(grid), version)
		switch {
		case err == nil:
			logging.Info(ctx, "roster bootstrapped", slog.Int("roles", len(s.roles)))
			return View{Grid: grid, Version: newVersion}, nil
		case errs.IsKind(err, errs.KindConflict):
			// Another loader bootstrapped first; use what it stored.
			logging.Info(ctx, "roster bootstrapped concurrently, reloading")
			table, version, err = s.records.LoadAllWithVersion(ctx)
			if err != nil {
				return View{}, err
			}
		default:
			return View{}, err
		}
	}

	stored := domain.Grid{Rows: make([]domain.Row, 0, len(table.Records))}
	for _, rec := range table.Records {
		stored.Rows = append(stored.Rows, domain.RowFromRecord(rec))
	}
	grid, dropped := stored.Normalize(s.roles)
	if len(dropped) > 0 || len(stored.Rows) != len(grid.Rows) {
		logging.Warn(ctx, "stored roster does not match configured roles, normalized",
			slog.Int("stored_rows", len(stored.Rows)),
			slog.Int("roles", len(s.roles)),
			slog.Any("dropped_roles", dropped),
		)
	}
	return View{Grid: grid, Version: version}, nil
}

// Save replaces the stored roster with grid. A non-empty version must match what is
// stored; the new version is returned.
func (s *Service) Save(ctx context.Context, grid domain.Grid, version string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.roster"))

	canonical, err := grid.Canonical(s.roles)
	if err != nil {
		return "", errs.E(errs.KindValidation, "save roster", err)
	}

	newVersion, err := s.records.OverwriteAll(ctx, domain.Header(), toRecords(canonical), version)
	if err != nil {
		return "", err
	}
	logging.Info(ctx, "roster saved", slog.String("version", newVersion))
	return newVersion, nil
}

// Import reads a TOML roster, one table per role keyed by day, and saves it over the
// stored one. Roles absent from the file are saved blank.
//
//	["Shift Supervisor"]
//	Monday = "Ali"
func (s *Service) Import(ctx context.Context, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("reader is required")
	}
	var doc map[string]map[string]string
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return "", errs.E(errs.KindValidation, "import roster", errs.Wrap(err, "decode toml"))
	}

	grid := domain.Blank(s.roles)
	for role, days := range doc {
		if !slices.Contains(s.roles, role) {
			return "", errs.E(errs.KindValidation, "import roster", fmt.Errorf("%w: %q", domain.ErrUnknownRole, role))
		}
		for day, name := range days {
			if !grid.Assign(role, day, name) {
				return "", errs.E(errs.KindValidation, "import roster", fmt.Errorf("%w: %q", domain.ErrUnknownDay, day))
			}
		}
	}
	return s.Save(ctx, grid, "")
}

func toRecords(grid domain.Grid) []recordstore.Record {
	out := make([]recordstore.Record, 0, len(grid.Rows))
	for _, rec := range grid.Records() {
		out = append(out, recordstore.Record(rec))
	}
	return out
}

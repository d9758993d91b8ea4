package recordstore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"cranesection/internal/errs"
	"cranesection/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "cranesection/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "cranesection/internal/infrastructure/persistence/sqlite/uow"
	"cranesection/internal/ports"
	"cranesection/internal/testkit/memsheet"
)

var followupHeader = []string{"timestamp", "section", "equipment", "problem", "note", "reported_by"}

func newMemStore(t *testing.T, policy SchemaPolicy) (*Store, *memsheet.Opener) {
	t.Helper()
	opener := memsheet.New()
	store, err := New(opener, Options{Spreadsheet: "Crane Section", Worksheet: "Followups", SchemaPolicy: policy})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, opener
}

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "store.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	store, err := New(sqliterepo.NewSpreadsheetRepository(db, sqliteuow.NewUnitOfWork(db)), Options{
		Spreadsheet: "Crane Section",
		Worksheet:   "Roster",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func followup(ts, section, equipment, problem, note, reporter string) Record {
	return Record{
		"timestamp":   ts,
		"section":     section,
		"equipment":   equipment,
		"problem":     problem,
		"note":        note,
		"reported_by": reporter,
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema(first) error = %v", err)
	}
	if err := store.Append(ctx, followup("2024-01-01", "RTG", "12", "motor noise", "", "Ali")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	sheet := opener.Sheet("Crane Section", "Followups")
	before := sheet.Mutations

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema(second) error = %v", err)
	}

	if sheet.Mutations != before {
		t.Fatalf("second EnsureSchema mutated the sheet: %d -> %d", before, sheet.Mutations)
	}
	rows := sheet.Rows()
	if len(rows) != 2 || !reflect.DeepEqual(rows[0], followupHeader) {
		t.Fatalf("rows after second EnsureSchema = %v", rows)
	}
}

func TestEnsureSchemaWritesHeaderOnEmptyWorksheet(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	book, _ := opener.Open(ctx, "Crane Section")
	if _, err := book.CreateWorksheet(ctx, "Followups", nil); err != nil {
		t.Fatalf("CreateWorksheet() error = %v", err)
	}

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	rows := opener.Sheet("Crane Section", "Followups").Rows()
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], followupHeader) {
		t.Fatalf("rows = %v", rows)
	}
}

func TestEnsureSchemaStrictRefusesDataLoss(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, []string{"timestamp", "problem"}); err != nil {
		t.Fatalf("EnsureSchema(old) error = %v", err)
	}
	if err := store.Append(ctx, Record{"timestamp": "t1", "problem": "leak"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	err := store.EnsureSchema(ctx, followupHeader)
	if !errs.IsKind(err, errs.KindSchema) || !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("EnsureSchema(mismatch) error = %v, want schema mismatch", err)
	}
	rows := opener.Sheet("Crane Section", "Followups").Rows()
	if len(rows) != 2 || rows[1][1] != "leak" {
		t.Fatalf("strict policy must not touch rows: %v", rows)
	}
}

func TestEnsureSchemaRewritesHeaderWithoutDataRows(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, []string{"timestamp", "problem"}); err != nil {
		t.Fatalf("EnsureSchema(old) error = %v", err)
	}
	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema(new) error = %v", err)
	}
	rows := opener.Sheet("Crane Section", "Followups").Rows()
	if !reflect.DeepEqual(rows, [][]string{followupHeader}) {
		t.Fatalf("rows = %v", rows)
	}
}

func TestEnsureSchemaResetPolicyClears(t *testing.T) {
	store, opener := newMemStore(t, SchemaReset)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, []string{"timestamp", "problem"}); err != nil {
		t.Fatalf("EnsureSchema(old) error = %v", err)
	}
	if err := store.Append(ctx, Record{"timestamp": "t1", "problem": "leak"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema(reset) error = %v", err)
	}

	rows := opener.Sheet("Crane Section", "Followups").Rows()
	if !reflect.DeepEqual(rows, [][]string{followupHeader}) {
		t.Fatalf("rows after reset = %v", rows)
	}
}

func TestMigrateKeepsDataByColumnName(t *testing.T) {
	store, _ := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, []string{"problem", "timestamp", "legacy"}); err != nil {
		t.Fatalf("EnsureSchema(old) error = %v", err)
	}
	if err := store.Append(ctx, Record{"problem": "leak", "timestamp": "t1", "legacy": "x"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := store.Migrate(ctx, []string{"timestamp", "problem", "note"}); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := store.EnsureSchema(ctx, []string{"timestamp", "problem", "note"}); err != nil {
		t.Fatalf("EnsureSchema(after migrate) error = %v", err)
	}

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	want := []Record{{"timestamp": "t1", "problem": "leak", "note": ""}}
	if !reflect.DeepEqual(table.Records, want) {
		t.Fatalf("LoadAll() = %v, want %v", table.Records, want)
	}
}

func TestAppendThenLoadAllPreservesOrder(t *testing.T) {
	store, _ := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	records := []Record{
		followup("2024-01-01 08:00:00", "RTG", "12", "motor noise", "", "Ali"),
		followup("2024-01-01 09:30:00", "STS", "3", "spreader twistlock", "checked sensor", "Omar"),
		followup("2024-01-02 07:15:00", "ARTG", "41", "hoist brake", "", "Sara"),
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%v) error = %v", rec, err)
		}
	}

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if !reflect.DeepEqual(table.Header, followupHeader) {
		t.Fatalf("LoadAll() header = %v", table.Header)
	}
	if !reflect.DeepEqual(table.Records, records) {
		t.Fatalf("LoadAll() records = %v, want %v", table.Records, records)
	}
}

func TestAppendScenarioSingleRecord(t *testing.T) {
	store, _ := newMemStore(t, SchemaStrict)
	ctx := context.Background()
	header := []string{"timestamp", "section", "equipment", "problem", "reported_by"}

	if err := store.EnsureSchema(ctx, header); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	rec := Record{"timestamp": "2024-01-01", "section": "RTG", "equipment": "12", "problem": "motor noise", "reported_by": "Ali"}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(table.Records) != 1 || !reflect.DeepEqual(table.Records[0], rec) {
		t.Fatalf("LoadAll() = %v", table.Records)
	}
}

func TestAppendRejectsIncompleteRecord(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	err := store.Append(ctx, Record{"timestamp": "t", "section": "RTG"})
	if !errs.IsKind(err, errs.KindValidation) || !errors.Is(err, ErrMissingFields) {
		t.Fatalf("Append(missing) error = %v", err)
	}

	rec := followup("t", "RTG", "1", "p", "", "Ali")
	rec["colour"] = "red"
	err = store.Append(ctx, rec)
	if !errors.Is(err, ErrUnknownFields) {
		t.Fatalf("Append(unknown) error = %v", err)
	}

	if rows := opener.Sheet("Crane Section", "Followups").Rows(); len(rows) != 1 {
		t.Fatalf("rejected appends must not write: %v", rows)
	}
}

func TestAppendWithoutSchemaFails(t *testing.T) {
	store, _ := newMemStore(t, SchemaStrict)

	err := store.Append(context.Background(), Record{"a": "b"})
	if !errs.IsKind(err, errs.KindSchema) || !errors.Is(err, ErrSchemaNotInitialized) {
		t.Fatalf("Append() error = %v, want schema not initialized", err)
	}
}

func TestLoadAllEmptyCases(t *testing.T) {
	store, _ := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll(missing worksheet) error = %v", err)
	}
	if len(table.Records) != 0 {
		t.Fatalf("LoadAll(missing worksheet) = %v", table.Records)
	}

	if err := store.EnsureSchema(ctx, followupHeader); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	table, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll(header only) error = %v", err)
	}
	if len(table.Records) != 0 || len(table.Header) != len(followupHeader) {
		t.Fatalf("LoadAll(header only) = %+v", table)
	}
}

func TestLoadAllPadsShortRows(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx, []string{"role", "Monday", "Tuesday"}); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	opener.Sheet("Crane Section", "Followups").SetRows([][]string{
		{"role", "Monday", "Tuesday"},
		{"Electrician"},
	})

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	want := Record{"role": "Electrician", "Monday": "", "Tuesday": ""}
	if len(table.Records) != 1 || !reflect.DeepEqual(table.Records[0], want) {
		t.Fatalf("LoadAll() = %v", table.Records)
	}
}

func TestOverwriteAllReplacesContent(t *testing.T) {
	for name, store := range map[string]*Store{
		"memsheet": func() *Store { s, _ := newMemStore(t, SchemaStrict); return s }(),
		"sqlite":   newSQLiteStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			header := []string{"role", "Monday"}

			first := []Record{{"role": "Supervisor", "Monday": "Ali"}, {"role": "Mechanic", "Monday": "Omar"}}
			if _, err := store.OverwriteAll(ctx, header, first, ""); err != nil {
				t.Fatalf("OverwriteAll(first) error = %v", err)
			}

			second := []Record{{"role": "Electrician", "Monday": ""}}
			if _, err := store.OverwriteAll(ctx, header, second, ""); err != nil {
				t.Fatalf("OverwriteAll(second) error = %v", err)
			}

			table, err := store.LoadAll(ctx)
			if err != nil {
				t.Fatalf("LoadAll() error = %v", err)
			}
			if !reflect.DeepEqual(table.Records, second) {
				t.Fatalf("LoadAll() = %v, want %v", table.Records, second)
			}
		})
	}
}

func TestOverwriteAllVersionToken(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	header := []string{"role", "Monday"}

	version, err := store.OverwriteAll(ctx, header, []Record{{"role": "Supervisor", "Monday": ""}}, "")
	if err != nil {
		t.Fatalf("OverwriteAll() error = %v", err)
	}
	loadedVersion, err := store.Version(ctx)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if loadedVersion != version {
		t.Fatalf("Version() = %s, OverwriteAll returned %s", loadedVersion, version)
	}

	// Another editor saves first.
	if _, err := store.OverwriteAll(ctx, header, []Record{{"role": "Supervisor", "Monday": "Ali"}}, version); err != nil {
		t.Fatalf("OverwriteAll(first editor) error = %v", err)
	}

	_, err = store.OverwriteAll(ctx, header, []Record{{"role": "Supervisor", "Monday": "Omar"}}, version)
	if !errs.IsKind(err, errs.KindConflict) || !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("OverwriteAll(stale) error = %v, want conflict", err)
	}

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if table.Records[0]["Monday"] != "Ali" {
		t.Fatalf("stale overwrite must not write: %v", table.Records)
	}
}

func TestOpenFailureIsConnectionError(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	opener.Unavailable = true

	_, err := store.LoadAll(context.Background())
	if !errs.IsKind(err, errs.KindConnection) || !errors.Is(err, memsheet.ErrUnavailable) {
		t.Fatalf("LoadAll() error = %v, want connection error", err)
	}
}

func TestAppendFailureIsStoreError(t *testing.T) {
	store, opener := newMemStore(t, SchemaStrict)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx, []string{"a"}); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	opener.Sheet("Crane Section", "Followups").FailAppend = errors.New("quota exceeded")

	err := store.Append(ctx, Record{"a": "1"})
	if !errs.IsKind(err, errs.KindStore) {
		t.Fatalf("Append() error = %v, want store error", err)
	}
}

func TestBackendHangEndsAsStoreErrorAfterTimeout(t *testing.T) {
	header := []string{"a"}
	newHangingStore := func(t *testing.T) (*Store, *memsheet.Opener) {
		t.Helper()
		opener := memsheet.New()
		store, err := New(opener, Options{Spreadsheet: "Crane Section", Worksheet: "Followups", Timeout: 10 * time.Millisecond})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := store.EnsureSchema(context.Background(), header); err != nil {
			t.Fatalf("EnsureSchema() error = %v", err)
		}
		return store, opener
	}

	ops := map[string]func(ctx context.Context, store *Store) error{
		"load_all": func(ctx context.Context, store *Store) error {
			_, err := store.LoadAll(ctx)
			return err
		},
		"append": func(ctx context.Context, store *Store) error {
			return store.Append(ctx, Record{"a": "1"})
		},
		"overwrite_all": func(ctx context.Context, store *Store) error {
			_, err := store.OverwriteAll(ctx, header, []Record{{"a": "2"}}, "")
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			store, opener := newHangingStore(t)
			opener.Sheet("Crane Section", "Followups").Hang()

			start := time.Now()
			err := op(context.Background(), store)
			if !errs.IsKind(err, errs.KindStore) || !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("%s error = %v, want store error with deadline exceeded", name, err)
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Fatalf("%s returned after %s", name, elapsed)
			}
		})
	}

	t.Run("open", func(t *testing.T) {
		store, opener := newHangingStore(t)
		opener.Hanging = true

		_, err := store.LoadAll(context.Background())
		if !errs.IsKind(err, errs.KindStore) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("LoadAll() error = %v, want store error with deadline exceeded", err)
		}
	})
}

type racingBook struct {
	ports.Spreadsheet
	created bool
}

func (b *racingBook) CreateWorksheet(ctx context.Context, name string, header []string) (ports.Worksheet, error) {
	// Another process creates the worksheet right before us.
	if !b.created {
		b.created = true
		if _, err := b.Spreadsheet.CreateWorksheet(ctx, name, header); err != nil {
			return nil, err
		}
	}
	return nil, ports.ErrWorksheetExists
}

type racingOpener struct{ book *racingBook }

func (o racingOpener) Open(context.Context, string) (ports.Spreadsheet, error) { return o.book, nil }

func TestEnsureSchemaToleratesConcurrentCreate(t *testing.T) {
	inner, err := memsheet.New().Open(context.Background(), "Crane Section")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store, err := New(racingOpener{book: &racingBook{Spreadsheet: inner}}, Options{Spreadsheet: "Crane Section", Worksheet: "Followups"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := store.EnsureSchema(context.Background(), followupHeader); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	ws, found, err := inner.LookupWorksheet(context.Background(), "Followups")
	if err != nil || !found {
		t.Fatalf("worksheet missing: found=%v err=%v", found, err)
	}
	rows, _ := ws.ReadAllRows(context.Background())
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want only the header", rows)
	}
}

func TestFingerprintIgnoresTrailingBlankCells(t *testing.T) {
	a := Fingerprint([][]string{{"role", "Monday"}, {"Mechanic", ""}})
	b := Fingerprint([][]string{{"role", "Monday"}, {"Mechanic"}})
	if a != b {
		t.Fatalf("Fingerprint() differs for trailing blanks: %s vs %s", a, b)
	}
	if a == Fingerprint([][]string{{"role", "Monday"}, {"Mechanic", "Ali"}}) {
		t.Fatalf("Fingerprint() should change with content")
	}
}

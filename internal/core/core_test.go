package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	coredb "github.com/jdholdren/karmabot/internal/core/db"
	"github.com/jdholdren/karmabot/internal/core/models"
)

var (
	sqlxDB *sqlx.DB
	coreDB coredb.DB
	cr     Core
)

func truncateDB(t *testing.T) {
	if _, err := sqlxDB.Exec("DELETE FROM users;"); err != nil {
		t.Fatalf("unexpected error truncating: %s", err)
	}
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "karmabot-core")
	if err != nil {
		fmt.Println("error creating temp dir: ", err)
		os.Exit(1)
	}

	sqlxDB, err = coredb.Open("sqlite3", filepath.Join(dir, "test.sqlite"))
	if err != nil {
		fmt.Println("error opening test db: ", err)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	coreDB = coredb.New(sqlxDB)
	if err := coreDB.InitSchema(context.Background()); err != nil {
		fmt.Println("error initializing schema: ", err)
		os.RemoveAll(dir)
		os.Exit(1)
	}
	cr = New(coreDB, zap.NewNop().Sugar())

	code := m.Run()

	sqlxDB.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token     string
		magnitude int64
		dir       models.Direction
	}{
		{"++", 1, models.Increased},
		{"+++", 2, models.Increased},
		{"+++++", 4, models.Increased},
		{"--", 1, models.Decreased},
		{"----", 3, models.Decreased},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			magnitude, dir := ParseToken(tt.token)
			if magnitude != tt.magnitude || dir != tt.dir {
				t.Errorf("ParseToken(%q) = (%d, %s), want (%d, %s)", tt.token, magnitude, dir, tt.magnitude, tt.dir)
			}
		})
	}
}

func TestApplyKarmaNewUser(t *testing.T) {
	ctx := context.Background()
	truncateDB(t)

	got := cr.ApplyKarma(ctx, "zed", "++")
	want := models.KarmaChange{Name: "zed", Karma: 1, Direction: models.Increased}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyKarma() mismatch (-want +got):\n%s", diff)
	}

	u, ok, err := coreDB.FindByName(ctx, "zed")
	if err != nil || !ok {
		t.Fatalf("expected zed to be stored, ok=%t err=%v", ok, err)
	}
	if u.Karma != 1 {
		t.Errorf("expected stored karma 1, got %d", u.Karma)
	}
}

func TestApplyKarmaAccumulates(t *testing.T) {
	ctx := context.Background()
	truncateDB(t)

	cr.ApplyKarma(ctx, "alice", "++++")
	got := cr.ApplyKarma(ctx, "alice", "---")

	want := models.KarmaChange{Name: "alice", Karma: 1, Direction: models.Decreased}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyKarma() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyKarmaDecreaseBelowZero(t *testing.T) {
	ctx := context.Background()
	truncateDB(t)

	got := cr.ApplyKarma(ctx, "bob", "-----")
	if got.Karma != -4 {
		t.Errorf("expected -4, got %d", got.Karma)
	}
}

func TestListKarmaTop(t *testing.T) {
	ctx := context.Background()
	truncateDB(t)

	cr.ApplyKarma(ctx, "a", "++")
	cr.ApplyKarma(ctx, "b", "++++")
	cr.ApplyKarma(ctx, "c", "---")
	cr.ApplyKarma(ctx, "d", "+++")

	heading, got, err := cr.ListKarma(ctx, "top")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if heading != "Top karma:" {
		t.Errorf("unexpected heading %q", heading)
	}

	want := []string{"b: 3", "d: 2", "a: 1"}
	if diff := cmp.Diff(want, format(got)); diff != "" {
		t.Errorf("ListKarma(top) mismatch (-want +got):\n%s", diff)
	}

	heading, got, err = cr.ListKarma(ctx, "bottom")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if heading != "Bottom karma:" {
		t.Errorf("unexpected heading %q", heading)
	}

	want = []string{"c: -2", "a: 1", "d: 2"}
	if diff := cmp.Diff(want, format(got)); diff != "" {
		t.Errorf("ListKarma(bottom) mismatch (-want +got):\n%s", diff)
	}
}

func TestListKarmaByName(t *testing.T) {
	ctx := context.Background()
	truncateDB(t)

	cr.ApplyKarma(ctx, "carol", "+++")

	heading, got, err := cr.ListKarma(ctx, "carol")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if heading != "" {
		t.Errorf("expected empty heading, got %q", heading)
	}
	if diff := cmp.Diff([]string{"carol: 2"}, format(got)); diff != "" {
		t.Errorf("ListKarma(carol) mismatch (-want +got):\n%s", diff)
	}

	_, got, err = cr.ListKarma(ctx, "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff([]string{"stranger: 0"}, format(got)); diff != "" {
		t.Errorf("ListKarma(stranger) mismatch (-want +got):\n%s", diff)
	}
}

func format(us []models.UserKarma) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, fmt.Sprintf("%s: %d", u.Name, u.Karma))
	}
	return out
}

// failingStore has every write fail
type failingStore struct {
	Store
	user    models.UserKarma
	found   bool
	updates int
}

func (f *failingStore) FindByName(context.Context, string) (models.UserKarma, bool, error) {
	return f.user, f.found, nil
}

func (f *failingStore) Insert(context.Context, string) (models.UserKarma, error) {
	return models.UserKarma{}, coredb.ErrStoreWrite
}

func (f *failingStore) UpdateKarma(context.Context, int64, int64) error {
	f.updates++
	return coredb.ErrStoreWrite
}

func TestApplyKarmaSwallowsWriteErrors(t *testing.T) {
	fs := &failingStore{user: models.UserKarma{ID: 4, Name: "dave", Karma: 10}, found: true}
	c := New(fs, zap.NewNop().Sugar())

	got := c.ApplyKarma(context.Background(), "dave", "+++")
	want := models.KarmaChange{Name: "dave", Karma: 12, Direction: models.Increased}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyKarma() mismatch (-want +got):\n%s", diff)
	}
	if fs.updates != 1 {
		t.Errorf("expected one update attempt, got %d", fs.updates)
	}
}

func TestApplyKarmaInsertFailure(t *testing.T) {
	fs := &failingStore{}
	c := New(fs, zap.NewNop().Sugar())

	got := c.ApplyKarma(context.Background(), "erin", "--")
	want := models.KarmaChange{Name: "erin", Karma: -1, Direction: models.Decreased}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyKarma() mismatch (-want +got):\n%s", diff)
	}
	if fs.updates != 0 {
		t.Errorf("expected no update without a row, got %d", fs.updates)
	}
}

func TestListKarmaError(t *testing.T) {
	c := New(&listErrStore{}, zap.NewNop().Sugar())

	if _, _, err := c.ListKarma(context.Background(), "top"); !errors.Is(err, errList) {
		t.Errorf("expected wrapped list error, got %v", err)
	}
}

var errList = errors.New("list broke")

type listErrStore struct {
	Store
}

func (listErrStore) ListTop(context.Context, int) ([]models.UserKarma, error) {
	return nil, errList
}

package migrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

func planFor(t *testing.T, dialect string, ops []Op) []string {
	t.Helper()
	p, err := NewPlanner(dialect)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	stmts, err := p.Plan(ops)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return stmts
}

func wantUnsupported(t *testing.T, dialect string, ops []Op) {
	t.Helper()
	p, err := NewPlanner(dialect)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	_, err = p.Plan(ops)
	var ae *ApplyError
	if !errors.As(err, &ae) || ae.Kind != DialectUnsupported {
		t.Fatalf("expected DialectUnsupported, got %v", err)
	}
}

func TestPlan_CreateSQLite(t *testing.T) {
	curr := mustSnapshot(t, blogSchema)
	ops, _ := Diff(nil, curr)
	stmts := planFor(t, driver.SQLite, ops)

	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, `CREATE TABLE "users"`) {
		t.Errorf("missing users table:\n%s", joined)
	}
	if !strings.Contains(joined, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`) {
		t.Errorf("missing autoincrement identity:\n%s", joined)
	}
	if !strings.Contains(joined, `CREATE UNIQUE INDEX "ux_users_email"`) {
		t.Errorf("missing unique index:\n%s", joined)
	}
	// The posts FK folds into the CREATE TABLE on sqlite.
	if !strings.Contains(joined, `FOREIGN KEY ("author_id") REFERENCES "users" ("id") ON DELETE CASCADE`) {
		t.Errorf("missing inlined foreign key:\n%s", joined)
	}
	if strings.Contains(joined, "ADD CONSTRAINT") {
		t.Errorf("sqlite must not emit ADD CONSTRAINT:\n%s", joined)
	}
	if !strings.Contains(joined, `CREATE INDEX "ix_posts_author_id"`) {
		t.Errorf("missing fk index:\n%s", joined)
	}
}

func TestPlan_CreatePostgres(t *testing.T) {
	curr := mustSnapshot(t, blogSchema)
	ops, _ := Diff(nil, curr)
	stmts := planFor(t, driver.Postgres, ops)

	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, `"id" SERIAL PRIMARY KEY`) {
		t.Errorf("missing serial identity:\n%s", joined)
	}
	if !strings.Contains(joined, `"created_at" TIMESTAMPTZ NOT NULL`) {
		t.Errorf("missing timestamptz column:\n%s", joined)
	}
	if !strings.Contains(joined, `ALTER TABLE "posts" ADD CONSTRAINT "fk_post_author_id" FOREIGN KEY ("author_id") REFERENCES "users" ("id") ON DELETE CASCADE`) {
		t.Errorf("missing fk constraint:\n%s", joined)
	}
}

func TestPlan_CreateMySQL(t *testing.T) {
	curr := mustSnapshot(t, blogSchema)
	ops, _ := Diff(nil, curr)
	stmts := planFor(t, driver.MySQL, ops)

	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, "`id` INT AUTO_INCREMENT PRIMARY KEY") {
		t.Errorf("missing auto_increment identity:\n%s", joined)
	}
	if !strings.Contains(joined, "`email` VARCHAR(255) NOT NULL") {
		t.Errorf("unique text column should be bounded:\n%s", joined)
	}
	if !strings.Contains(joined, "ADD CONSTRAINT `fk_post_author_id` FOREIGN KEY") {
		t.Errorf("missing fk constraint:\n%s", joined)
	}
}

func TestPlan_StaticDefaultInDDL(t *testing.T) {
	curr := mustSnapshot(t, `entity Post {
    id        int    @id
    published bool   @default(false)
    rank      float  @default(1.5)
    status    string @default("draft")
}`)
	ops, _ := Diff(nil, curr)
	stmts := planFor(t, driver.SQLite, ops)
	joined := strings.Join(stmts, "\n")
	for _, want := range []string{"DEFAULT FALSE", "DEFAULT 1.5", "DEFAULT 'draft'"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q:\n%s", want, joined)
		}
	}
}

func TestPlan_GeneratedDefaultsGetNoDDL(t *testing.T) {
	curr := mustSnapshot(t, `entity Token {
    id        string    @id @default(uuid)
    createdAt timestamp @default(now)
}`)
	ops, _ := Diff(nil, curr)
	stmts := planFor(t, driver.SQLite, ops)
	joined := strings.Join(stmts, "\n")
	if strings.Contains(joined, "DEFAULT") {
		t.Errorf("generated defaults are computed client-side:\n%s", joined)
	}
}

func TestPlan_AddColumn(t *testing.T) {
	prev := mustSnapshot(t, `entity User { id int @id }`)
	curr := mustSnapshot(t, `entity User {
    id  int @id
    bio string?
    tag string @unique @default("x")
}`)
	ops, _ := Diff(prev, curr)
	stmts := planFor(t, driver.Postgres, ops)
	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, `ALTER TABLE "users" ADD COLUMN "bio" TEXT`) {
		t.Errorf("missing add column:\n%s", joined)
	}
	if !strings.Contains(joined, `CREATE UNIQUE INDEX "ux_users_tag"`) {
		t.Errorf("missing unique index for added column:\n%s", joined)
	}
}

func TestPlan_AddRequiredColumnWithoutConstantDefault(t *testing.T) {
	prev := mustSnapshot(t, `entity User { id int @id }`)
	curr := mustSnapshot(t, `entity User {
    id  int @id
    bio string
}`)
	ops, _ := Diff(prev, curr)
	p, _ := NewPlanner(driver.SQLite)
	_, err := p.Plan(ops)
	var ae *ApplyError
	if !errors.As(err, &ae) || ae.Kind != ConstraintViolation {
		t.Fatalf("expected ConstraintViolation, got %v", err)
	}
}

func TestPlan_AlterPostgres(t *testing.T) {
	prev := mustSnapshot(t, `entity M {
    id int @id
    v  int?
}`)
	curr := mustSnapshot(t, `entity M {
    id int @id
    v  bigint
}`)
	ops, _ := Diff(prev, curr)
	stmts := planFor(t, driver.Postgres, ops)
	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, `ALTER COLUMN "v" TYPE BIGINT USING "v"::BIGINT`) {
		t.Errorf("missing type change:\n%s", joined)
	}
	if !strings.Contains(joined, `ALTER COLUMN "v" SET NOT NULL`) {
		t.Errorf("missing not null:\n%s", joined)
	}
}

func TestPlan_AlterMySQL(t *testing.T) {
	prev := mustSnapshot(t, `entity M {
    id int @id
    v  int?
}`)
	curr := mustSnapshot(t, `entity M {
    id int @id
    v  int
}`)
	ops, _ := Diff(prev, curr)
	stmts := planFor(t, driver.MySQL, ops)
	if len(stmts) != 1 || !strings.Contains(stmts[0], "MODIFY COLUMN `v` INT NOT NULL") {
		t.Errorf("stmts = %v", stmts)
	}
}

func TestPlan_AlterSQLiteUnsupported(t *testing.T) {
	prev := mustSnapshot(t, `entity M {
    id int @id
    v  int?
}`)
	curr := mustSnapshot(t, `entity M {
    id int @id
    v  int
}`)
	ops, _ := Diff(prev, curr)
	wantUnsupported(t, driver.SQLite, ops)
}

func TestPlan_IdentityMoveRejected(t *testing.T) {
	// Moving @id from one field to another must never plan as a no-op.
	prev := mustSnapshot(t, `entity User {
    id   int    @id
    code string @unique
}`)
	curr := mustSnapshot(t, `entity User {
    id   int
    code string @id
}`)
	ops, _ := Diff(prev, curr)
	if len(ops) == 0 {
		t.Fatal("expected alter ops for the identity move")
	}
	wantUnsupported(t, driver.Postgres, ops)
	wantUnsupported(t, driver.MySQL, ops)
	wantUnsupported(t, driver.SQLite, ops)
}

func TestPlan_AddIdentityColumnRejected(t *testing.T) {
	ops := []Op{AddField{
		Entity: "User",
		Table:  "users",
		Field:  &schema.Field{Name: "code", Type: schema.TypeString, Identity: true},
	}}
	wantUnsupported(t, driver.Postgres, ops)
	wantUnsupported(t, driver.SQLite, ops)
}

func TestPlan_UniqueToggleOnSQLite(t *testing.T) {
	// Pure uniqueness changes are index-only and work everywhere.
	prev := mustSnapshot(t, `entity M {
    id int @id
    v  string?
}`)
	curr := mustSnapshot(t, `entity M {
    id int @id
    v  string? @unique
}`)
	ops, _ := Diff(prev, curr)
	stmts := planFor(t, driver.SQLite, ops)
	if len(stmts) != 1 || stmts[0] != `CREATE UNIQUE INDEX "ux_ms_v" ON "ms" ("v")` {
		t.Errorf("stmts = %v", stmts)
	}
}

func TestPlan_AddRelationToExistingSQLiteTable(t *testing.T) {
	prev := mustSnapshot(t, `entity User { id int @id }
entity Post {
    id       int @id
    authorId int
}`)
	curr := mustSnapshot(t, `entity User { id int @id }
entity Post {
    id       int @id
    authorId int @ref(User.id)
}`)
	ops, _ := Diff(prev, curr)
	wantUnsupported(t, driver.SQLite, ops)

	// The same change is fine on postgres.
	stmts := planFor(t, driver.Postgres, ops)
	if len(stmts) != 2 || !strings.Contains(stmts[0], "ADD CONSTRAINT") {
		t.Errorf("stmts = %v", stmts)
	}
}

func TestPlan_DropRelation(t *testing.T) {
	prev := mustSnapshot(t, `entity User { id int @id }
entity Post {
    id       int @id
    authorId int @ref(User.id)
}`)
	curr := mustSnapshot(t, `entity User { id int @id }
entity Post {
    id       int @id
    authorId int
}`)
	ops, _ := Diff(prev, curr)

	pg := planFor(t, driver.Postgres, ops)
	if len(pg) != 1 || pg[0] != `ALTER TABLE "posts" DROP CONSTRAINT "fk_post_author_id"` {
		t.Errorf("postgres stmts = %v", pg)
	}
	my := planFor(t, driver.MySQL, ops)
	if len(my) != 1 || my[0] != "ALTER TABLE `posts` DROP FOREIGN KEY `fk_post_author_id`" {
		t.Errorf("mysql stmts = %v", my)
	}
	wantUnsupported(t, driver.SQLite, ops)
}

func TestPlan_DropRelationWithEntityOnSQLite(t *testing.T) {
	prev := mustSnapshot(t, blogSchema)
	curr := mustSnapshot(t, `entity User {
    id        int       @id @default(autoincrement)
    email     string    @unique
    name      string?
    createdAt timestamp @default(now)
}`)
	ops, _ := Diff(prev, curr)
	stmts := planFor(t, driver.SQLite, ops)
	if len(stmts) != 1 || stmts[0] != `DROP TABLE "posts"` {
		t.Errorf("stmts = %v", stmts)
	}
}

func TestPlan_UnknownDialect(t *testing.T) {
	if _, err := NewPlanner("oracle"); err == nil {
		t.Fatal("expected an error for unknown dialect")
	}
}

package dbquery

import "testing"

var reviewsTable = Table{
	Name:         "reviews",
	Columns:      []string{"id", "repository", "branch", "state", "summary"},
	IDColumn:     "id",
	DefaultOrder: "id",
}

func TestSelectDefaults(t *testing.T) {
	sql := reviewsTable.Select().SQL()
	want := `SELECT id, repository, branch, state, summary FROM reviews ORDER BY id`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestSelectWithClauses(t *testing.T) {
	sql := reviewsTable.Select("id").
		Join("JOIN branches ON branches.id=reviews.branch").
		Where("state={state}", "repository={repo}").
		OrderBy("id DESC").
		Limit(10).
		SQL()
	want := `SELECT id FROM reviews JOIN branches ON branches.id=reviews.branch` +
		` WHERE state={state} AND repository={repo} ORDER BY id DESC LIMIT 10`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestSelectDistinctOn(t *testing.T) {
	sql := reviewsTable.Select("repository", "id").
		DistinctOn("repository").
		OrderBy("repository, id DESC").
		SQL()
	want := `SELECT DISTINCT ON (repository) repository, id FROM reviews ORDER BY repository, id DESC`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestInsertSQL(t *testing.T) {
	sql := reviewsTable.InsertSQL("repository", "branch")
	want := `INSERT INTO reviews (repository, branch) VALUES ({repository}, {branch}) RETURNING id`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestUpdateSQL(t *testing.T) {
	sql := reviewsTable.UpdateSQL([]string{"state"}, []string{"id={id}"})
	want := `UPDATE reviews SET state={state} WHERE id={id}`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
}

func TestDeleteSQL(t *testing.T) {
	sql := reviewsTable.DeleteSQL(nil)
	if sql != `DELETE FROM reviews` {
		t.Fatalf("sql = %q", sql)
	}
	sql = reviewsTable.DeleteSQL([]string{"id={id}"})
	if sql != `DELETE FROM reviews WHERE id={id}` {
		t.Fatalf("sql = %q", sql)
	}
}

func TestFormatCondition(t *testing.T) {
	if got := FormatCondition("scope", "scope", nil); got != "scope IS NULL" {
		t.Fatalf("nil condition = %q", got)
	}
	var id *int64
	if got := FormatCondition("scope", "scope", id); got != "scope IS NULL" {
		t.Fatalf("nil pointer condition = %q", got)
	}
	if got := FormatCondition("scope", "scope", int64(3)); got != "scope={scope}" {
		t.Fatalf("value condition = %q", got)
	}
}

package database

import (
	"testing"

	"github.com/critic-scm/critic/internal/models"
)

func TestExpandPositional(t *testing.T) {
	sql, args, err := Expand(
		`SELECT id FROM reviews WHERE repository={repo} AND state={state}`,
		Params{"repo": int64(7), "state": "open"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := `SELECT id FROM reviews WHERE repository=$1 AND state=$2`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 || args[0] != int64(7) || args[1] != "open" {
		t.Fatalf("args = %v", args)
	}
}

func TestExpandRepeatedPlaceholderSharesArgument(t *testing.T) {
	sql, args, err := Expand(
		`SELECT 1 WHERE a={uid} OR b={uid}`,
		Params{"uid": int64(3)})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if sql != `SELECT 1 WHERE a=$1 OR b=$1` {
		t.Fatalf("sql = %q", sql)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v, repeated placeholders must share one argument", args)
	}
}

func TestExpandSliceBecomesAny(t *testing.T) {
	sql, args, err := Expand(
		`DELETE FROM reviewusertags WHERE review={review} AND uid={uids}`,
		Params{"review": int64(1), "uids": []int64{4, 5}})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := `DELETE FROM reviewusertags WHERE review=$1 AND uid=ANY($2)`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestExpandBytesNotTreatedAsSlice(t *testing.T) {
	sql, _, err := Expand(`INSERT INTO t (payload) VALUES ({payload})`,
		Params{"payload": []byte(`{}`)})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if sql != `INSERT INTO t (payload) VALUES ($1)` {
		t.Fatalf("sql = %q", sql)
	}
}

func TestExpandNormalizesNamedStringTypes(t *testing.T) {
	_, args, err := Expand(`SELECT 1 WHERE state={state}`,
		Params{"state": models.ReviewOpen})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if _, ok := args[0].(string); !ok {
		t.Fatalf("args[0] = %T, want plain string", args[0])
	}
}

func TestExpandErrors(t *testing.T) {
	if _, _, err := Expand(`SELECT {missing}`, Params{}); err == nil {
		t.Fatal("expected unbound parameter error")
	}
	if _, _, err := Expand(`SELECT 1`, Params{"extra": 1}); err == nil {
		t.Fatal("expected unused parameter error")
	}
	if _, _, err := Expand(`SELECT {broken`, Params{"broken": 1}); err == nil {
		t.Fatal("expected unterminated placeholder error")
	}
}

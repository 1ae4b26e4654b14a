package querybuilder

import (
	"reflect"
	"testing"
	"time"
)

func TestSelect_WithConditionsOrderLimit(t *testing.T) {
	cutoff := time.Unix(1_700_000_000, 0).UTC()
	query, args, err := Select("match_id", "status").From("matches").
		Where(
			Eq("status", "running"),
			Lt("updated_at", cutoff),
		).
		OrderBy("updated_at ASC").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select failed: %v", err)
	}

	want := "SELECT match_id, status FROM matches WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT 10"
	if query != want {
		t.Fatalf("unexpected query: %s", query)
	}
	if !reflect.DeepEqual(args, []any{"running", cutoff}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestSelect_InConditionEmptyValues(t *testing.T) {
	query, args, err := Select("*").From("matches").
		Where(In("status", nil)).
		ToSQL()
	if err != nil {
		t.Fatalf("build select failed: %v", err)
	}

	if query != "SELECT * FROM matches WHERE 1=0" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 0 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsert_WithConflictSuffix(t *testing.T) {
	query, args, err := InsertInto("reminders").
		Columns("guild_id", "match_id", "offset_minutes").
		Values("g1", int64(7), 30).
		Suffix("ON CONFLICT (guild_id, match_id, offset_minutes) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert failed: %v", err)
	}

	want := "INSERT INTO reminders (guild_id, match_id, offset_minutes) VALUES ($1, $2, $3) ON CONFLICT (guild_id, match_id, offset_minutes) DO NOTHING"
	if query != want {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 3 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsert_RowLengthMismatch(t *testing.T) {
	_, _, err := InsertInto("reminders").
		Columns("guild_id", "match_id").
		Values("g1").
		ToSQL()
	if err == nil {
		t.Fatal("expected row length mismatch error")
	}
}

func TestUpdate_WithExprAndWhere(t *testing.T) {
	sentAt := time.Unix(1_700_000_100, 0).UTC()
	query, args, err := Update("reminders").
		Set("sent", true).
		Set("sent_at", sentAt).
		Where(Eq("id", int64(5)), Eq("sent", false)).
		ToSQL()
	if err != nil {
		t.Fatalf("build update failed: %v", err)
	}

	want := "UPDATE reminders SET sent = $1, sent_at = $2 WHERE id = $3 AND sent = $4"
	if query != want {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 4 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestDelete_RequiresConditions(t *testing.T) {
	if _, _, err := DeleteFrom("matches").ToSQL(); err == nil {
		t.Fatal("expected missing conditions error")
	}

	query, args, err := DeleteFrom("matches").Where(Eq("match_id", int64(9))).ToSQL()
	if err != nil {
		t.Fatalf("build delete failed: %v", err)
	}
	if query != "DELETE FROM matches WHERE match_id = $1" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestInsertModel_UsesDBTags(t *testing.T) {
	type row struct {
		GuildID string `db:"guild_id"`
		Skipped string `db:"-"`
		Channel string `db:"channel_id"`
	}

	query, args, err := InsertModel("guild_configs", row{GuildID: "g1", Channel: "c1"}, "")
	if err != nil {
		t.Fatalf("insert model failed: %v", err)
	}

	want := "INSERT INTO guild_configs (guild_id, channel_id) VALUES ($1, $2)"
	if query != want {
		t.Fatalf("unexpected query: %s", query)
	}
	if !reflect.DeepEqual(args, []any{"g1", "c1"}) {
		t.Fatalf("unexpected args: %v", args)
	}
}

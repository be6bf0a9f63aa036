package dbprovision

import "testing"

func TestIsSelectQueryAcceptsSelect(t *testing.T) {
	cases := []string{
		"SELECT * FROM users",
		"  select id from sessions",
		"\n\tSelect 1",
		"SELECT(1)",
	}
	for _, q := range cases {
		if !isSelectQuery(q) {
			t.Fatalf("expected %q to be accepted as a SELECT", q)
		}
	}
}

func TestIsSelectQueryRejectsEverythingElse(t *testing.T) {
	cases := []string{
		"DROP TABLE users",
		"DELETE FROM sessions",
		"INSERT INTO users VALUES (1)",
		"",
		"   ",
		"UPDATE users SET name = 'x'",
		"SELECTION FROM somewhere", // not an exact SELECT token
	}
	for _, q := range cases {
		if isSelectQuery(q) {
			t.Fatalf("expected %q to be rejected", q)
		}
	}
}

func TestValidateTableNameAcceptsIdentifiers(t *testing.T) {
	for _, name := range []string{"users", "chat_sessions", "table-1", "T2"} {
		if err := validateTableName(name); err != nil {
			t.Fatalf("expected %q to be valid, got %v", name, err)
		}
	}
}

func TestValidateTableNameRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"users; DROP TABLE users", "users.public", "a b", "a'b"} {
		if err := validateTableName(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

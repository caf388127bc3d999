package store

import (
	"errors"
	"fmt"
	"strings"
)

// ColumnType is the declared SQLite type of a column.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeBlob    ColumnType = "BLOB"
	TypeBoolean ColumnType = "BOOLEAN"
)

// DeleteRule is the ON DELETE behaviour of a foreign key.
type DeleteRule int

const (
	NoAction DeleteRule = iota
	Cascade
	SetNull
)

func (r DeleteRule) sql() string {
	switch r {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	default:
		return "NO ACTION"
	}
}

// ForeignKey references a column of another table.
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete DeleteRule
}

// Column describes one table column.
type Column struct {
	Name          string
	Type          ColumnType
	NotNull       bool
	Default       string // SQL literal, empty for none
	PrimaryKey    bool
	AutoIncrement bool
	References    *ForeignKey
}

// TableDef describes a table. PrimaryKey is for composite keys; a single
// column key can be marked on the column instead.
type TableDef struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Unique     [][]string
}

// Index describes a (possibly unique) index.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// SearchIndex describes a full-text index mirroring text columns of a table.
type SearchIndex struct {
	Name    string
	Table   string
	Columns []string
}

// SchemaWriter declares tables, indexes and search indexes inside a
// transaction.
type SchemaWriter struct {
	tx *Tx
}

// Schema returns a SchemaWriter bound to t.
func (t *Tx) Schema() *SchemaWriter {
	return &SchemaWriter{tx: t}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func columnSQL(c Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(string(c.Type))
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if fk := c.References; fk != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s) ON DELETE %s", quoteIdent(fk.Table), quoteIdent(fk.Column), fk.OnDelete.sql())
	}
	return b.String()
}

// CreateTable creates the table described by def.
func (w *SchemaWriter) CreateTable(def TableDef) error {
	if def.Name == "" || len(def.Columns) == 0 {
		return errors.New("create table: name and columns are required")
	}
	defs := make([]string, 0, len(def.Columns)+len(def.Unique)+1)
	for _, c := range def.Columns {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("create table %s: column needs a name and type", def.Name)
		}
		if c.PrimaryKey && len(def.PrimaryKey) > 0 {
			return fmt.Errorf("create table %s: column %s is a primary key alongside a composite key", def.Name, c.Name)
		}
		defs = append(defs, columnSQL(c))
	}
	if len(def.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteIdents(def.PrimaryKey)+")")
	}
	for _, u := range def.Unique {
		defs = append(defs, "UNIQUE ("+quoteIdents(u)+")")
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quoteIdent(def.Name), strings.Join(defs, ",\n    "))
	if _, err := w.tx.Exec(stmt); err != nil {
		return fmt.Errorf("create table %s: %w", def.Name, err)
	}
	return nil
}

// AddColumn adds c to an existing table. SQLite requires a default for NOT
// NULL columns added this way.
func (w *SchemaWriter) AddColumn(table string, c Column) error {
	if c.PrimaryKey {
		return fmt.Errorf("add column %s.%s: cannot add a primary key column", table, c.Name)
	}
	if c.NotNull && c.Default == "" {
		return fmt.Errorf("add column %s.%s: NOT NULL column needs a default", table, c.Name)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), columnSQL(c))
	if _, err := w.tx.Exec(stmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, c.Name, err)
	}
	return nil
}

// CreateIndex creates idx.
func (w *SchemaWriter) CreateIndex(idx Index) error {
	if idx.Name == "" || idx.Table == "" || len(idx.Columns) == 0 {
		return errors.New("create index: name, table and columns are required")
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, quoteIdent(idx.Name), quoteIdent(idx.Table), quoteIdents(idx.Columns))
	if _, err := w.tx.Exec(stmt); err != nil {
		return fmt.Errorf("create index %s: %w", idx.Name, err)
	}
	return nil
}

// CreateSearchIndex creates an FTS5 external-content table over the given
// columns of idx.Table, the triggers that keep it in sync, and fills it from
// the existing rows. Tokens are case folded and diacritics removed.
//
// Without FTS5 in the driver this is a no-op and searches fall back to LIKE.
func (w *SchemaWriter) CreateSearchIndex(idx SearchIndex) error {
	if idx.Name == "" || idx.Table == "" || len(idx.Columns) == 0 {
		return errors.New("create search index: name, table and columns are required")
	}
	if !w.tx.fts5 {
		return nil
	}

	name := quoteIdent(idx.Name)
	cols := quoteIdents(idx.Columns)
	newCols := prefixed("new.", idx.Columns)
	oldCols := prefixed("old.", idx.Columns)

	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING fts5(%s, content='%s', content_rowid='rowid', tokenize='unicode61 remove_diacritics 2')`,
			name, cols, idx.Table),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT ON %s BEGIN
    INSERT INTO %s(rowid, %s) VALUES (new.rowid, %s);
END`, quoteIdent(idx.Name+"_ai"), quoteIdent(idx.Table), name, cols, newCols),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER DELETE ON %s BEGIN
    INSERT INTO %s(%s, rowid, %s) VALUES ('delete', old.rowid, %s);
END`, quoteIdent(idx.Name+"_ad"), quoteIdent(idx.Table), name, name, cols, oldCols),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE ON %s BEGIN
    INSERT INTO %s(%s, rowid, %s) VALUES ('delete', old.rowid, %s);
    INSERT INTO %s(rowid, %s) VALUES (new.rowid, %s);
END`, quoteIdent(idx.Name+"_au"), quoteIdent(idx.Table), name, name, cols, oldCols, name, cols, newCols),
	}
	for _, stmt := range stmts {
		if _, err := w.tx.Exec(stmt); err != nil {
			return fmt.Errorf("create search index %s: %w", idx.Name, err)
		}
	}
	return w.RebuildSearchIndex(idx.Name)
}

// RebuildSearchIndex repopulates a search index from its content table.
func (w *SchemaWriter) RebuildSearchIndex(name string) error {
	if !w.tx.fts5 {
		return nil
	}
	n := quoteIdent(name)
	if _, err := w.tx.Exec(fmt.Sprintf("INSERT INTO %s(%s) VALUES ('rebuild')", n, n)); err != nil {
		return fmt.Errorf("rebuild search index %s: %w", name, err)
	}
	return nil
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + quoteIdent(c)
	}
	return strings.Join(out, ", ")
}
